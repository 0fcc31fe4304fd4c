package transfers_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tokentransfer/internal/domain"
	"tokentransfer/internal/repository"
)

type transferRepository struct{}

func NewTransferRepository() *transferRepository {
	return &transferRepository{}
}

func (r *transferRepository) CreateTx(ctx context.Context, querier domain.Querier, event *domain.TransferEvent) error {
	query := `
		INSERT INTO transfers (id, mint, from_owner, to_owner, source_account, destination_account, amount, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)
	`
	_, err := querier.ExecContext(ctx, query,
		event.TransferID,
		event.Mint.String(),
		event.From.String(),
		event.To.String(),
		event.SourceAccount.String(),
		event.DestinationAccount.String(),
		repository.Uint64Arg(event.Amount),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer record %s: %w", event.TransferID, err)
	}
	return nil
}

func (r *transferRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.TransferEvent, error) {
	query := `
		SELECT id, mint, from_owner, to_owner, source_account, destination_account, amount::text, occurred_at
		FROM transfers
		WHERE id = $1
	`
	var (
		mint, from, to, source, destination, amount string
		event                                      domain.TransferEvent
	)
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&event.TransferID, &mint, &from, &to, &source, &destination, &amount, &event.OccurredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer %s: %w", id, err)
	}

	if event.Mint, err = repository.ParseKey("mint", mint); err != nil {
		return nil, err
	}
	if event.From, err = repository.ParseKey("from_owner", from); err != nil {
		return nil, err
	}
	if event.To, err = repository.ParseKey("to_owner", to); err != nil {
		return nil, err
	}
	if event.SourceAccount, err = repository.ParseKey("source_account", source); err != nil {
		return nil, err
	}
	if event.DestinationAccount, err = repository.ParseKey("destination_account", destination); err != nil {
		return nil, err
	}
	if event.Amount, err = repository.ParseUint64("amount", amount); err != nil {
		return nil, err
	}
	event.OccurredAt = event.OccurredAt.UTC()
	return &event, nil
}
