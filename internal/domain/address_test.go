package domain

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeriver(t *testing.T) *AddressDeriver {
	t.Helper()
	d, err := NewAddressDeriver(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return d
}

func TestNewAddressDeriver_KeyLength(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr bool
	}{
		{name: "too short", keyLen: 15, wantErr: true},
		{name: "minimum", keyLen: 16},
		{name: "maximum", keyLen: 64},
		{name: "too long", keyLen: 65, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAddressDeriver(make([]byte, tt.keyLen))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDerivationKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHoldingAddress_Deterministic(t *testing.T) {
	d := testDeriver(t)
	owner := solana.NewWallet().PublicKey()
	otherOwner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	otherMint := solana.NewWallet().PublicKey()

	addr := d.HoldingAddress(owner, mint)
	assert.Equal(t, addr, d.HoldingAddress(owner, mint))
	assert.False(t, addr.IsZero())

	assert.NotEqual(t, addr, d.HoldingAddress(otherOwner, mint))
	assert.NotEqual(t, addr, d.HoldingAddress(owner, otherMint))
	assert.NotEqual(t, d.HoldingAddress(owner, mint), d.HoldingAddress(mint, owner), "owner and mint are not interchangeable")

	assert.True(t, d.Matches(addr, owner, mint))
	assert.False(t, d.Matches(addr, otherOwner, mint))
}

func TestHoldingAddress_DependsOnKey(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	a, err := NewAddressDeriver(bytes.Repeat([]byte{1}, 16))
	require.NoError(t, err)
	b, err := NewAddressDeriver(bytes.Repeat([]byte{2}, 16))
	require.NoError(t, err)

	assert.NotEqual(t, a.HoldingAddress(owner, mint), b.HoldingAddress(owner, mint))
}

func TestNewAddressDeriver_CopiesKey(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 16)
	d, err := NewAddressDeriver(key)
	require.NoError(t, err)
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	before := d.HoldingAddress(owner, mint)

	key[0] = 8
	assert.Equal(t, before, d.HoldingAddress(owner, mint))
}

func TestParseKey(t *testing.T) {
	key := solana.NewWallet().PublicKey()

	got, err := ParseKey("owner", "  "+key.String()+" ")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseKey("owner", "")
	assert.ErrorContains(t, err, "owner is required")

	_, err = ParseKey("mint", "not-base58-0OIl")
	assert.ErrorContains(t, err, "invalid mint")
}
