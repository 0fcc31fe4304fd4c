package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/blake2b"
)

const (
	holdingAccountTag   = "tokentransfer/holding-account/v1"
	minDerivationKeyLen = 16
)

var ErrInvalidDerivationKey = errors.New("derivation key must be between 16 and 64 bytes")

// AddressDeriver computes canonical holding account addresses as a keyed
// BLAKE2b-256 over (owner, mint). The same key must be used by every process
// sharing a ledger.
type AddressDeriver struct {
	key []byte
}

func NewAddressDeriver(key []byte) (*AddressDeriver, error) {
	if len(key) < minDerivationKeyLen || len(key) > blake2b.Size {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDerivationKey, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &AddressDeriver{key: k}, nil
}

func (d *AddressDeriver) HoldingAddress(owner, mint solana.PublicKey) solana.PublicKey {
	h, err := blake2b.New256(d.key)
	if err != nil {
		// key length is validated in NewAddressDeriver
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	h.Write([]byte(holdingAccountTag))
	h.Write(owner[:])
	h.Write(mint[:])
	return solana.PublicKeyFromBytes(h.Sum(nil))
}

// Matches reports whether address is the canonical holding address for (owner, mint).
func (d *AddressDeriver) Matches(address, owner, mint solana.PublicKey) bool {
	return d.HoldingAddress(owner, mint).Equals(address)
}

// ParseKey decodes a base58 identity or address, naming field in errors.
func ParseKey(field, raw string) (solana.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", field)
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return key, nil
}
