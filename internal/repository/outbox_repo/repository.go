package outbox_repo

import (
	"context"

	"tokentransfer/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkMessagesAsSent(ctx context.Context, querier domain.Querier, ids []string) error
	MarkAttemptFailed(ctx context.Context, querier domain.Querier, ids []string, reason string, maxAttempts int) error
}
