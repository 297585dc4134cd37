// Package keyvault stores wallet key material encrypted at rest (Badger).
// Accounts reference entries as "vault:<name>" in their wallet_key config so
// the YAML never carries private keys directly.
package keyvault

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// RefPrefix marks a wallet_key value that resolves through the vault.
const RefPrefix = "vault:"

// Vault is a small encrypted-at-rest KV wrapper. Encryption comes from the
// Badger options (value log + key registry), not from this wrapper.
type Vault struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; nil opens without encryption (not recommended)
	ReadOnly      bool
}

func Open(opts OpenOptions) (*Vault, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("keyvault: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// Badger requires an index cache for encrypted workloads.
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Vault{db: db}, nil
}

func (v *Vault) Close() error {
	if v == nil || v.db == nil {
		return nil
	}
	return v.db.Close()
}

// Get returns the stored value. found is false when the key does not exist.
func (v *Vault) Get(name string) (value string, found bool, err error) {
	if v == nil || v.db == nil {
		return "", false, errors.New("keyvault: not opened")
	}
	k := []byte(strings.TrimSpace(name))
	if len(k) == 0 {
		return "", false, errors.New("keyvault: name is empty")
	}
	err = v.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (v *Vault) Set(name, value string) error {
	if v == nil || v.db == nil {
		return errors.New("keyvault: not opened")
	}
	k := []byte(strings.TrimSpace(name))
	if len(k) == 0 {
		return errors.New("keyvault: name is empty")
	}
	return v.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(value))
	})
}

// Resolve maps a config wallet_key to key material: "vault:<name>" is looked
// up, anything else is returned unchanged.
func (v *Vault) Resolve(walletKey string) (string, error) {
	if !strings.HasPrefix(walletKey, RefPrefix) {
		return walletKey, nil
	}
	name := strings.TrimPrefix(walletKey, RefPrefix)
	val, found, err := v.Get(name)
	if err != nil {
		return "", fmt.Errorf("keyvault: resolve %q: %w", name, err)
	}
	if !found {
		return "", fmt.Errorf("keyvault: no entry %q", name)
	}
	return val, nil
}

// ParseKey expects the 32-byte vault encryption key as hex or base64.
// Returns nil for empty input.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rawHex := strings.TrimPrefix(raw, "0x")
	if b, err := hex.DecodeString(rawHex); err == nil {
		if len(b) == 32 {
			return b, nil
		}
		return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
