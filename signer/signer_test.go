package signer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

// Well-known development key (Hardhat account #0).
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const devAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestParsePrivateKeyHex_Address(t *testing.T) {
	k, err := ParsePrivateKeyHex(devKey)
	if err != nil {
		t.Fatalf("ParsePrivateKeyHex: %v", err)
	}
	if got := k.Address().Hex(); got != devAddr {
		t.Fatalf("address: got %s want %s", got, devAddr)
	}
	noPrefix, err := ParsePrivateKeyHex(devKey[2:])
	if err != nil || noPrefix.Address() != k.Address() {
		t.Fatalf("0x prefix should be optional: %v", err)
	}
}

func TestParsePrivateKeyHex_Rejects(t *testing.T) {
	for _, in := range []string{"", "0x1234", "zz", devKey + "00"} {
		if _, err := ParsePrivateKeyHex(in); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("%q: got %v want ErrInvalidKey", in, err)
		}
	}
}

func TestSign_RecoversSigner(t *testing.T) {
	k, err := ParsePrivateKeyHex(devKey)
	if err != nil {
		t.Fatalf("ParsePrivateKeyHex: %v", err)
	}
	for _, msg := range [][]byte{
		[]byte("hello"),
		crypto.Keccak256([]byte("already a digest")),
	} {
		sig, err := k.Sign(context.Background(), msg)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		if len(sig) != SignatureLength {
			t.Fatalf("signature length: got %d", len(sig))
		}
		if v := sig[64]; v != 27 && v != 28 {
			t.Fatalf("v: got %d want 27 or 28", v)
		}
		addr, err := RecoverAddress(msg, sig)
		if err != nil {
			t.Fatalf("RecoverAddress: %v", err)
		}
		if addr != k.Address() {
			t.Fatalf("recovered %s want %s", addr.Hex(), k.Address().Hex())
		}
	}
}

func TestDigest_KeccakMatchesGoEthereum(t *testing.T) {
	msg := []byte("in3")
	if got, want := Digest(msg), crypto.Keccak256(msg); string(got) != string(want) {
		t.Fatalf("digest mismatch")
	}
}

func TestSign_Errors(t *testing.T) {
	var nilKey *PrivateKey
	if _, err := nilKey.Sign(context.Background(), []byte("x")); !errors.Is(err, ErrNoKey) {
		t.Fatalf("nil key: got %v", err)
	}
	k, _ := GenerateKey()
	if _, err := k.Sign(context.Background(), nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("empty message: got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := k.Sign(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled ctx: got %v", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	var s Signer = Func(func(ctx context.Context, m []byte) ([]byte, error) { return append([]byte{1}, m...), nil })
	got, err := s.Sign(context.Background(), []byte{2})
	if err != nil || len(got) != 2 || got[0] != 1 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestKeyFile_RoundTripAndPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys", "node.key")
	k, err := ParsePrivateKeyHex(devKey)
	if err != nil {
		t.Fatalf("ParsePrivateKeyHex: %v", err)
	}
	if err := SaveKeyFile(path, k, false); err != nil {
		t.Fatalf("SaveKeyFile: %v", err)
	}
	if err := SaveKeyFile(path, k, false); !errors.Is(err, os.ErrExist) {
		t.Fatalf("second save without overwrite: got %v", err)
	}
	loaded, err := LoadKeyFile(path)
	if err != nil {
		t.Fatalf("LoadKeyFile: %v", err)
	}
	if loaded.Address() != k.Address() {
		t.Fatalf("loaded key differs")
	}

	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := LoadKeyFile(path); err == nil {
		t.Fatalf("expected world-readable key file to be rejected")
	}
}
