package leveldb

import (
	"path/filepath"
	"testing"

	"xdao.co/in3/storage"
	"xdao.co/in3/storage/testkit"
)

func TestLevelDB_Conformance(t *testing.T) {
	testkit.RunStorageConformance(t, func(t *testing.T) storage.Storage {
		t.Helper()
		s, err := OpenMemory()
		if err != nil {
			t.Fatalf("OpenMemory failed: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestLevelDB_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("nodelist_0x1", []byte("blob")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, err := s.Get("nodelist_0x1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "blob" {
		t.Fatalf("got %q", got)
	}
}
