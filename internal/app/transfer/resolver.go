package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"tokentransfer/internal/domain"
)

const opResolve = "resolve accounts"

// Resolver maps (owner, mint) pairs to canonical holding accounts and checks
// caller-supplied addresses against them.
type Resolver struct {
	deriver *domain.AddressDeriver
}

func NewResolver(deriver *domain.AddressDeriver) *Resolver {
	return &Resolver{deriver: deriver}
}

// Resolve locks both accounts of the instruction inside batch and reports
// whether the destination has to be created.
//
// A supplied source address that does not match derivation but names an
// existing account of another owner is resolved to that account, so the
// guard rejects it as Unauthorized rather than as a mismatch.
func (r *Resolver) Resolve(ctx context.Context, batch Batch, in domain.TransferInstruction) (*Resolution, error) {
	if in.Mint.IsZero() {
		return nil, domain.NewTransferError(domain.CodeInvalidMint, opResolve, errors.New("mint is empty"))
	}
	if in.DestinationOwner.IsZero() {
		return nil, domain.NewTransferError(domain.CodeAddressMismatch, opResolve, errors.New("destination owner is empty"))
	}

	mint, err := batch.Mint(ctx, in.Mint)
	if err != nil {
		if errors.Is(err, domain.ErrMintNotFound) {
			return nil, domain.NewTransferError(domain.CodeInvalidMint, opResolve, fmt.Errorf("mint %s: %w", in.Mint, err))
		}
		return nil, domain.NewTransferError(domain.CodeLedgerFailure, opResolve, err)
	}

	res := &Resolution{
		Mint:               mint,
		SourceAddress:      r.deriver.HoldingAddress(in.SourceOwner, in.Mint),
		DestinationAddress: r.deriver.HoldingAddress(in.DestinationOwner, in.Mint),
	}

	if in.DestinationAccount != nil && !in.DestinationAccount.Equals(res.DestinationAddress) {
		return nil, domain.NewTransferError(domain.CodeAddressMismatch, opResolve,
			fmt.Errorf("destination account %s is not the holding account of %s for mint %s", *in.DestinationAccount, in.DestinationOwner, in.Mint))
	}

	addresses := []solana.PublicKey{res.SourceAddress, res.DestinationAddress}
	foreignSource := in.SourceAccount != nil && !in.SourceAccount.Equals(res.SourceAddress)
	if foreignSource {
		addresses = append(addresses, *in.SourceAccount)
	}

	accounts, err := batch.LockAccounts(ctx, addresses...)
	if err != nil {
		return nil, domain.NewTransferError(domain.CodeLedgerFailure, opResolve, err)
	}

	if foreignSource {
		supplied, ok := accounts[*in.SourceAccount]
		if !ok || supplied.Owner.Equals(in.SourceOwner) {
			return nil, domain.NewTransferError(domain.CodeAddressMismatch, opResolve,
				fmt.Errorf("source account %s is not the holding account of %s for mint %s", *in.SourceAccount, in.SourceOwner, in.Mint))
		}
		res.SourceAddress = supplied.Address
	}

	res.Source = accounts[res.SourceAddress]
	res.Destination = accounts[res.DestinationAddress]
	res.CreateDestination = res.Destination == nil

	for _, acc := range []*domain.HoldingAccount{res.Source, res.Destination} {
		if acc != nil && !acc.Mint.Equals(in.Mint) {
			return nil, domain.NewTransferError(domain.CodeAddressMismatch, opResolve,
				fmt.Errorf("account %s holds mint %s, not %s", acc.Address, acc.Mint, in.Mint))
		}
	}
	return res, nil
}
