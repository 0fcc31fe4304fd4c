package repository

import (
	"fmt"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolationCodes(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	check := &pq.Error{Code: "23514"}
	fk := &pq.Error{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(check))
	assert.True(t, IsCheckViolation(check))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(fmt.Errorf("plain")))
	assert.False(t, IsCheckViolation(nil))
}

func TestUint64RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 2_039_280, math.MaxInt64 + 1, math.MaxUint64} {
		got, err := ParseUint64("balance", Uint64Arg(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	_, err := ParseUint64("balance", "18446744073709551616")
	assert.ErrorContains(t, err, "column balance")
	_, err = ParseUint64("balance", "-1")
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := solana.NewWallet().PublicKey()

	got, err := ParseKey("owner", key.String())
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseKey("owner", "not a key")
	assert.ErrorContains(t, err, "column owner")

	assert.Equal(t, []string{key.String()}, KeyStrings([]solana.PublicKey{key}))
}
