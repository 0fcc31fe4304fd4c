// Package funding prices the storage deposit of newly created holding accounts.
package funding

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
)

const (
	// AccountStorageOverhead is the per-account metadata size charged on top
	// of the data length.
	AccountStorageOverhead = 128
	// HoldingAccountSize is the serialized size of a holding account.
	HoldingAccountSize = 165

	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2
)

var ErrNoPayer = errors.New("funding payer is empty")

// RentSchedule charges the rent-exempt minimum for a holding account. The
// payer's own balance is not tracked here.
type RentSchedule struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

func NewRentSchedule(lamportsPerByteYear, exemptionYears uint64) *RentSchedule {
	return &RentSchedule{LamportsPerByteYear: lamportsPerByteYear, ExemptionYears: exemptionYears}
}

func DefaultRentSchedule() *RentSchedule {
	return NewRentSchedule(DefaultLamportsPerByteYear, DefaultExemptionThreshold)
}

// MinimumBalance is (overhead + size) * lamports per byte-year * years.
func (r *RentSchedule) MinimumBalance(dataLen uint64) (uint64, error) {
	hi, perYear := bits.Mul64(AccountStorageOverhead+dataLen, r.LamportsPerByteYear)
	if hi != 0 {
		return 0, fmt.Errorf("rent for %d bytes overflows", dataLen)
	}
	hi, total := bits.Mul64(perYear, r.ExemptionYears)
	if hi != 0 {
		return 0, fmt.Errorf("rent for %d bytes overflows", dataLen)
	}
	return total, nil
}

func (r *RentSchedule) Fund(ctx context.Context, payer, account solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if payer.IsZero() {
		return 0, fmt.Errorf("fund %s: %w", account, ErrNoPayer)
	}
	return r.MinimumBalance(HoldingAccountSize)
}
