package inbox_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tokentransfer/internal/domain"
)

var ErrMessageNotFound = errors.New("inbox message not found")

type inboxRepository struct{}

func NewInboxRepository() *inboxRepository {
	return &inboxRepository{}
}

func (r *inboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) error {
	query := `
		INSERT INTO inbox_messages (id, topic, partition, kafka_offset, consumer_group, transfer_id, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query,
		msg.ID,
		msg.Ref.Topic,
		msg.Ref.Partition,
		msg.Ref.Offset,
		msg.Ref.ConsumerGroup,
		msg.TransferID,
		msg.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create inbox message %s: %w", msg.Ref, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for inbox insert: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", msg.Ref, domain.ErrAlreadyProcessed)
	}
	return nil
}

func (r *inboxRepository) GetMessageByRefTx(ctx context.Context, querier domain.Querier, ref domain.InboundRef) (*domain.InboxMessage, error) {
	query := `
		SELECT id, topic, partition, kafka_offset, consumer_group, transfer_id, processed_at
		FROM inbox_messages
		WHERE topic = $1 AND partition = $2 AND kafka_offset = $3 AND consumer_group = $4
	`
	msg := &domain.InboxMessage{}
	err := querier.QueryRowContext(ctx, query, ref.Topic, ref.Partition, ref.Offset, ref.ConsumerGroup).Scan(
		&msg.ID,
		&msg.Ref.Topic,
		&msg.Ref.Partition,
		&msg.Ref.Offset,
		&msg.Ref.ConsumerGroup,
		&msg.TransferID,
		&msg.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get inbox message %s: %w", ref, err)
	}
	return msg, nil
}
