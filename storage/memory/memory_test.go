package memory

import (
	"testing"

	"xdao.co/in3/storage"
	"xdao.co/in3/storage/testkit"
)

func TestMemory_Conformance(t *testing.T) {
	testkit.RunStorageConformance(t, func(t *testing.T) storage.Storage {
		t.Helper()
		s, err := New(0)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return s
	})
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	s, err := New(2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_ = s.Set("a", []byte("1"))
	_ = s.Set("b", []byte("2"))
	if _, err := s.Get("a"); err != nil {
		t.Fatalf("Get(a): %v", err)
	}
	_ = s.Set("c", []byte("3"))

	if _, err := s.Get("b"); !storage.IsNotFound(err) {
		t.Fatalf("b should have been evicted, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len: got %d want 2", s.Len())
	}
}
