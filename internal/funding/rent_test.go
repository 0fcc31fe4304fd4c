package funding

import (
	"context"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentSchedule_DefaultDeposit(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	account := solana.NewWallet().PublicKey()

	deposit, err := DefaultRentSchedule().Fund(context.Background(), payer, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_039_280), deposit)
}

func TestRentSchedule_Errors(t *testing.T) {
	account := solana.NewWallet().PublicKey()

	_, err := DefaultRentSchedule().Fund(context.Background(), solana.PublicKey{}, account)
	assert.ErrorIs(t, err, ErrNoPayer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DefaultRentSchedule().Fund(ctx, solana.NewWallet().PublicKey(), account)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewRentSchedule(math.MaxUint64, 2).MinimumBalance(HoldingAccountSize)
	assert.Error(t, err)
}

func TestRentSchedule_MinimumBalance(t *testing.T) {
	tests := []struct {
		name    string
		rate    uint64
		years   uint64
		dataLen uint64
		want    uint64
	}{
		{name: "empty account", rate: 3480, years: 2, dataLen: 0, want: 128 * 3480 * 2},
		{name: "holding account", rate: 3480, years: 2, dataLen: HoldingAccountSize, want: 2_039_280},
		{name: "free storage", rate: 0, years: 2, dataLen: HoldingAccountSize, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRentSchedule(tt.rate, tt.years).MinimumBalance(tt.dataLen)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
