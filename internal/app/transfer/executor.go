package transfer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tokentransfer/internal/domain"
)

const opExecute = "execute transfer"

// Executor applies create-if-absent, debit and credit to one ledger batch.
// Nothing it writes is visible before the batch commits.
type Executor struct {
	funder Funder
	now    func() time.Time
	logger *zap.Logger
}

func NewExecutor(funder Funder, logger *zap.Logger) *Executor {
	return &Executor{funder: funder, now: time.Now, logger: logger}
}

// Execute mutates res in place: Source and Destination hold the staged
// post-transfer accounts when it returns nil.
func (e *Executor) Execute(ctx context.Context, batch Batch, capability domain.DebitCapability, res *Resolution, in domain.TransferInstruction) error {
	if res.CreateDestination {
		created, err := e.createDestination(ctx, batch, capability, res, in)
		if err != nil {
			return err
		}
		res.Destination = created
	}

	sourceBalance, err := batch.Debit(ctx, capability, res.SourceAddress, in.Amount)
	if err != nil {
		return domain.NewTransferError(domain.CodeLedgerFailure, opExecute, fmt.Errorf("debit %s: %w", res.SourceAddress, err))
	}
	destinationBalance, err := batch.Credit(ctx, res.DestinationAddress, in.Amount)
	if err != nil {
		return domain.NewTransferError(domain.CodeLedgerFailure, opExecute, fmt.Errorf("credit %s: %w", res.DestinationAddress, err))
	}

	now := e.now().UTC()
	if res.SelfTransfer() {
		res.Source = withBalance(res.Source, destinationBalance, now)
		res.Destination = res.Source
		return nil
	}
	res.Source = withBalance(res.Source, sourceBalance, now)
	res.Destination = withBalance(res.Destination, destinationBalance, now)
	return nil
}

func (e *Executor) createDestination(ctx context.Context, batch Batch, capability domain.DebitCapability, res *Resolution, in domain.TransferInstruction) (*domain.HoldingAccount, error) {
	payer := capability.Authority()
	deposit, err := e.funder.Fund(ctx, payer, res.DestinationAddress)
	if err != nil {
		return nil, domain.NewTransferError(domain.CodeLedgerFailure, opExecute, fmt.Errorf("fund %s: %w", res.DestinationAddress, err))
	}

	now := e.now().UTC()
	account := &domain.HoldingAccount{
		Address:     res.DestinationAddress,
		Owner:       in.DestinationOwner,
		Mint:        in.Mint,
		RentDeposit: deposit,
		FundedBy:    payer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := batch.CreateAccount(ctx, account); err != nil {
		return nil, domain.NewTransferError(domain.CodeLedgerFailure, opExecute, fmt.Errorf("create %s: %w", res.DestinationAddress, err))
	}
	e.logger.Debug("Destination holding account staged",
		zap.String("address", account.Address.String()),
		zap.String("owner", account.Owner.String()),
		zap.Uint64("rent_deposit", deposit))
	return account, nil
}

func withBalance(acc *domain.HoldingAccount, balance uint64, at time.Time) *domain.HoldingAccount {
	updated := *acc
	updated.Balance = balance
	updated.UpdatedAt = at
	return &updated
}
