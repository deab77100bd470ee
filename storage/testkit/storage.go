// Package testkit holds the conformance suite every storage backend runs.
package testkit

import (
	"bytes"
	"testing"

	"xdao.co/in3/storage"
)

// NewStorage constructs a fresh, empty store for a test.
// The returned store MUST be isolated from other tests.
type NewStorage func(t *testing.T) storage.Storage

func RunStorageConformance(t *testing.T, newStorage NewStorage) {
	t.Helper()

	t.Run("SetGetRoundTrip", func(t *testing.T) {
		s := newStorage(t)
		want := []byte(`{"nodes":["https://in3.example"],"lastBlock":17}`)
		if err := s.Set("nodelist_0x1", want); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := s.Get("nodelist_0x1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch: got %q want %q", got, want)
		}
	})

	t.Run("SetReplaces", func(t *testing.T) {
		s := newStorage(t)
		if err := s.Set("k", []byte("first")); err != nil {
			t.Fatalf("Set(1) failed: %v", err)
		}
		if err := s.Set("k", []byte("second")); err != nil {
			t.Fatalf("Set(2) failed: %v", err)
		}
		got, err := s.Get("k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "second" {
			t.Fatalf("Set did not replace value: got %q", got)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStorage(t)
		if _, err := s.Get("missing"); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
	})

	t.Run("EmptyValue", func(t *testing.T) {
		s := newStorage(t)
		if err := s.Set("empty", []byte{}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := s.Get("empty")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty value, got %q", got)
		}
	})

	t.Run("CallerOwnsBuffers", func(t *testing.T) {
		s := newStorage(t)
		in := []byte("abc")
		if err := s.Set("k", in); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		in[0] = 'X'
		got, err := s.Get("k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "abc" {
			t.Fatalf("store aliases the Set buffer: %q", got)
		}
		got[0] = 'Y'
		again, err := s.Get("k")
		if err != nil {
			t.Fatalf("Get(2) failed: %v", err)
		}
		if string(again) != "abc" {
			t.Fatalf("store aliases the Get buffer: %q", again)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStorage(t)
		for _, k := range []string{"a", "b", "nodelist_0x5"} {
			if err := s.Set(k, []byte(k)); err != nil {
				t.Fatalf("Set(%s) failed: %v", k, err)
			}
		}
		if err := s.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		for _, k := range []string{"a", "b", "nodelist_0x5"} {
			if _, err := s.Get(k); !storage.IsNotFound(err) {
				t.Fatalf("Get(%s) after Clear: got err=%v want ErrNotFound", k, err)
			}
		}
		if err := s.Set("a", []byte("again")); err != nil {
			t.Fatalf("Set after Clear failed: %v", err)
		}
	})

	t.Run("RejectEmptyKey", func(t *testing.T) {
		s := newStorage(t)
		if err := s.Set("", []byte("x")); err == nil {
			t.Fatalf("Set should fail for empty key")
		}
		if _, err := s.Get(""); err == nil || storage.IsNotFound(err) {
			t.Fatalf("Get should fail with a non-NotFound error for empty key, got %v", err)
		}
	})
}
