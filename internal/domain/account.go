package domain

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

var ErrAccountNotFound = errors.New("holding account not found")
var ErrAccountAlreadyExists = errors.New("holding account already exists")
var ErrMintNotFound = errors.New("mint not found")
var ErrMintAlreadyExists = errors.New("mint already exists")
var ErrBalanceOverflow = errors.New("balance overflow")
var ErrBalanceTooLow = errors.New("balance too low for debit")

// HoldingAccount is the per-owner, per-mint balance record. Its Address is
// always AddressDeriver.HoldingAddress(Owner, Mint).
type HoldingAccount struct {
	Address     solana.PublicKey
	Owner       solana.PublicKey
	Mint        solana.PublicKey
	Balance     uint64
	RentDeposit uint64
	FundedBy    solana.PublicKey
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Mint identifies a fungible asset. Decimals only affect display amounts.
type Mint struct {
	Address   solana.PublicKey
	Authority solana.PublicKey
	Decimals  uint8
	CreatedAt time.Time
}
