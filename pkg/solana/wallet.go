package solana

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// Wallet signs transactions with an ed25519 keypair. Addresses and
// signatures travel as base58 strings, matching chain conventions.
type Wallet struct {
	priv    ed25519.PrivateKey
	address string
}

// NewWallet parses a base58-encoded 64-byte private key.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{
		priv:    priv,
		address: base58.Encode(pub),
	}, nil
}

// GenerateWallet creates a fresh keypair (dry runs and tests).
func GenerateWallet() (*Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Wallet{priv: priv, address: base58.Encode(pub)}, nil
}

// Address returns the base58 public key.
func (w *Wallet) Address() string { return w.address }

// Sign signs a message and returns the base58 signature.
func (w *Wallet) Sign(message []byte) string {
	return base58.Encode(ed25519.Sign(w.priv, message))
}

// ValidAddress reports whether s decodes to a 32-byte public key.
func ValidAddress(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == ed25519.PublicKeySize
}
