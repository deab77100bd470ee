package signer

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const keyLength = 32

func parseKeyHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != keyLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, keyLength, len(raw))
	}
	return raw, nil
}

// LoadKeyFile reads a hex key file written by SaveKeyFile.
//
// Files readable by group or others are rejected.
func LoadKeyFile(path string) (*PrivateKey, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("signer: key file %s has mode %04o, want 0600", path, fi.Mode().Perm())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKeyHex(string(data))
}

// SaveKeyFile writes the key as hex with mode 0600. Existing files are kept
// unless overwrite is set.
func SaveKeyFile(path string, key *PrivateKey, overwrite bool) error {
	if key == nil || key.key == nil {
		return ErrNoKey
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(strings.TrimPrefix(key.Hex(), "0x") + "\n"); err != nil {
		return err
	}
	return f.Sync()
}
