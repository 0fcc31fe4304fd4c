package transfer

import (
	"context"
	"time"

	"tokentransfer/internal/domain"
)

const opEmit = "emit transfer event"

// Emitter appends the transfer record to the same batch as the balance
// mutation, so it exists if and only if the transfer commits.
type Emitter struct {
	now func() time.Time
}

func NewEmitter() *Emitter {
	return &Emitter{now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, batch Batch, transferID string, res *Resolution, in domain.TransferInstruction) (*domain.TransferEvent, error) {
	event := &domain.TransferEvent{
		TransferID:         transferID,
		Mint:               in.Mint,
		From:               in.SourceOwner,
		To:                 in.DestinationOwner,
		SourceAccount:      res.SourceAddress,
		DestinationAccount: res.DestinationAddress,
		Amount:             in.Amount,
		OccurredAt:         e.now().UTC(),
	}
	if err := batch.AppendEvent(ctx, event); err != nil {
		return nil, domain.NewTransferError(domain.CodeLedgerFailure, opEmit, err)
	}
	return event, nil
}
