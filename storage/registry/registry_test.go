package registry

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"xdao.co/in3/storage"
)

type nopStore struct{}

func (nopStore) Get(string) ([]byte, error) { return nil, storage.ErrNotFound }
func (nopStore) Set(string, []byte) error   { return nil }
func (nopStore) Clear() error               { return nil }

func TestRegister_Validation(t *testing.T) {
	open := func() (storage.Storage, func() error, error) { return nopStore{}, nil, nil }
	flags := func(*pflag.FlagSet) {}
	cases := []Backend{
		{Usage: UsageClient, RegisterFlags: flags, Open: open},
		{Name: "x", Usage: UsageClient, Open: open},
		{Name: "x", Usage: UsageClient, RegisterFlags: flags},
		{Name: "x", RegisterFlags: flags, Open: open},
	}
	for i, b := range cases {
		if err := Register(b); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestRegisterOpenAndFlags(t *testing.T) {
	var dir string
	MustRegister(Backend{
		Name:  "test-daemon-only",
		Usage: UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&dir, "test-dir", "", "test dir")
		},
		Open: func() (storage.Storage, func() error, error) { return nopStore{}, nil, nil },
	})
	if err := Register(Backend{
		Name: "test-daemon-only", Usage: UsageDaemon,
		RegisterFlags: func(*pflag.FlagSet) {},
		Open:          func() (storage.Storage, func() error, error) { return nil, nil, nil },
	}); err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("duplicate: got %v", err)
	}

	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	RegisterFlags(fs, UsageDaemon)
	if err := fs.Parse([]string{"--test-dir", "/tmp/x"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if dir != "/tmp/x" {
		t.Fatalf("flag not bound: %q", dir)
	}

	if _, _, err := Open("test-daemon-only", UsageClient); err == nil {
		t.Fatalf("expected usage mismatch error")
	}
	if _, _, err := Open("test-daemon-only", UsageDaemon); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := Open("nope", UsageDaemon); err == nil {
		t.Fatalf("expected unknown backend error")
	}

	found := false
	for _, n := range Names(UsageDaemon) {
		if n == "test-daemon-only" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Names missing registered backend")
	}
}

func TestOpenTiered(t *testing.T) {
	closed := 0
	for _, name := range []string{"tier-a", "tier-b"} {
		MustRegister(Backend{
			Name:          name,
			Usage:         UsageClient,
			RegisterFlags: func(*pflag.FlagSet) {},
			Open: func() (storage.Storage, func() error, error) {
				return nopStore{}, func() error { closed++; return nil }, nil
			},
		})
	}

	s, closeFn, err := OpenTiered([]string{"tier-a", "tier-b"}, UsageClient)
	if err != nil {
		t.Fatalf("OpenTiered: %v", err)
	}
	tiered, ok := s.(storage.Tiered)
	if !ok || len(tiered.Tiers) != 2 || tiered.Tiers[0].Name != "tier-a" {
		t.Fatalf("unexpected store %#v", s)
	}
	if err := closeFn(); err != nil || closed != 2 {
		t.Fatalf("close: err=%v closed=%d", err, closed)
	}

	single, _, err := OpenTiered([]string{"tier-a"}, UsageClient)
	if err != nil {
		t.Fatalf("OpenTiered(single): %v", err)
	}
	if _, isTiered := single.(storage.Tiered); isTiered {
		t.Fatalf("single backend should not be wrapped")
	}

	if _, _, err := OpenTiered([]string{"tier-a", "tier-a"}, UsageClient); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, _, err := OpenTiered(nil, UsageClient); err == nil {
		t.Fatalf("expected error for no names")
	}
}
