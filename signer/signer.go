// Package signer provides the signing capability used to satisfy sign
// requests in the context tree.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

var (
	ErrNoKey          = errors.New("signer: missing private key")
	ErrInvalidKey     = errors.New("signer: invalid private key")
	ErrEmptyMessage   = errors.New("signer: empty message")
	ErrSignatureShape = errors.New("signer: signature must be 65 bytes")
)

// SignatureLength is the size of an [R || S || V] signature.
const SignatureLength = crypto.SignatureLength

// Signer produces a signature over message. One call per sign request.
type Signer interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// Func adapts an ordinary function to Signer.
type Func func(ctx context.Context, message []byte) ([]byte, error)

func (f Func) Sign(ctx context.Context, message []byte) ([]byte, error) { return f(ctx, message) }

// PrivateKey signs with a raw secp256k1 key.
//
// A 32-byte message is treated as a digest and signed as-is. Any other message
// is hashed with Keccak-256 first. V is 27 or 28.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

var _ Signer = (*PrivateKey)(nil)

// NewPrivateKey wraps an existing key.
func NewPrivateKey(key *ecdsa.PrivateKey) (*PrivateKey, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	return &PrivateKey{key: key}, nil
}

// ParsePrivateKeyHex parses a 32-byte hex key; the 0x prefix is optional.
func ParsePrivateKeyHex(s string) (*PrivateKey, error) {
	raw, err := parseKeyHex(s)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &PrivateKey{key: key}, nil
}

// GenerateKey returns a signer over a fresh random key.
func GenerateKey() (*PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// Address returns the Ethereum address of the key.
func (p *PrivateKey) Address() common.Address {
	return crypto.PubkeyToAddress(p.key.PublicKey)
}

// Hex returns the 0x-prefixed key bytes.
func (p *PrivateKey) Hex() string {
	return "0x" + common.Bytes2Hex(crypto.FromECDSA(p.key))
}

func (p *PrivateKey) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if p == nil || p.key == nil {
		return nil, ErrNoKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(message) == 0 {
		return nil, ErrEmptyMessage
	}
	sig, err := crypto.Sign(Digest(message), p.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Digest returns the 32-byte value that PrivateKey signs for message.
func Digest(message []byte) []byte {
	if len(message) == 32 {
		return append([]byte(nil), message...)
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(message)
	return h.Sum(nil)
}

// RecoverAddress returns the address that produced sig over message.
func RecoverAddress(message, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrSignatureShape
	}
	s := append([]byte(nil), sig...)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(Digest(message), s)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
