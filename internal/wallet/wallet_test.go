package wallet

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
)

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return seed
}

func TestFromBase58FullKey(t *testing.T) {
	full := ed25519.NewKeyFromSeed(testSeed())

	w, err := FromBase58(base58.Encode(full))
	if err != nil {
		t.Fatalf("FromBase58: %v", err)
	}
	if !bytes.Equal(w.PrivateKey(), []byte(full)) {
		t.Fatalf("private key mismatch")
	}
	if w.Address() == "" {
		t.Fatalf("empty address")
	}
}

func TestFromBase58SeedMatchesFullKey(t *testing.T) {
	seed := testSeed()
	full := ed25519.NewKeyFromSeed(seed)

	fromSeed, err := FromBase58(base58.Encode(seed))
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	fromFull, err := FromBase58(base58.Encode(full))
	if err != nil {
		t.Fatalf("from full: %v", err)
	}
	if fromSeed.Address() != fromFull.Address() {
		t.Fatalf("seed and full key disagree: %s vs %s", fromSeed.Address(), fromFull.Address())
	}
}

func TestFromBase58Rejects(t *testing.T) {
	if _, err := FromBase58("not!!base58"); err == nil {
		t.Fatalf("accepted invalid base58")
	}
	if _, err := FromBase58(base58.Encode(make([]byte, 16))); err == nil {
		t.Fatalf("accepted 16-byte key")
	}
}

func TestSignerOnlyAnswersOwnKey(t *testing.T) {
	w, err := FromBase58(base58.Encode(testSeed()))
	if err != nil {
		t.Fatalf("FromBase58: %v", err)
	}
	other, err := FromBase58(base58.Encode(bytes.Repeat([]byte{0x7f}, ed25519.SeedSize)))
	if err != nil {
		t.Fatalf("FromBase58: %v", err)
	}

	signer := w.Signer()
	if signer(w.PublicKey()) == nil {
		t.Fatalf("signer refused its own key")
	}
	if signer(other.PublicKey()) != nil {
		t.Fatalf("signer answered a foreign key")
	}
}
