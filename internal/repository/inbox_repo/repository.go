package inbox_repo

import (
	"context"

	"tokentransfer/internal/domain"
)

type InboxRepository interface {
	// CreateMessageTx returns domain.ErrAlreadyProcessed when the Kafka
	// coordinates were recorded before.
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) error
	GetMessageByRefTx(ctx context.Context, querier domain.Querier, ref domain.InboundRef) (*domain.InboxMessage, error)
}
