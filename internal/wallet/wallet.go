// Package wallet loads Solana keypairs from base58 key material.
package wallet

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Wallet holds one account's signing key.
type Wallet struct {
	key solana.PrivateKey
}

// FromBase58 accepts either a full 64-byte ed25519 private key or a 32-byte
// seed, both base58 encoded (the two formats wallet exporters produce).
func FromBase58(encoded string) (*Wallet, error) {
	raw, err := base58.Decode(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode wallet key: %w", err)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return &Wallet{key: solana.PrivateKey(raw)}, nil
	case ed25519.SeedSize:
		return &Wallet{key: solana.PrivateKey(ed25519.NewKeyFromSeed(raw))}, nil
	default:
		return nil, fmt.Errorf("wallet key must decode to %d or %d bytes, got %d",
			ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}
}

// PublicKey is the wallet's on-chain address.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// Address is the base58 form of the public key.
func (w *Wallet) Address() string {
	return w.key.PublicKey().String()
}

// PrivateKey exposes the signing key for transaction signing.
func (w *Wallet) PrivateKey() solana.PrivateKey {
	return w.key
}

// Signer returns the lookup used by transaction signing: it yields the
// private key only for this wallet's public key.
func (w *Wallet) Signer() func(key solana.PublicKey) *solana.PrivateKey {
	return func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey()) {
			k := w.key
			return &k
		}
		return nil
	}
}
