package transfers_repo

import (
	"context"

	"tokentransfer/internal/domain"
)

// TransferRepository stores the audit record of committed transfers.
type TransferRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, event *domain.TransferEvent) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.TransferEvent, error)
}
