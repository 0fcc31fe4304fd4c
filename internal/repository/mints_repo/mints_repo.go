package mints_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"tokentransfer/internal/domain"
	"tokentransfer/internal/repository"
)

type mintRepository struct{}

func NewMintRepository() *mintRepository {
	return &mintRepository{}
}

func (r *mintRepository) CreateMintTx(ctx context.Context, querier domain.Querier, mint *domain.Mint) error {
	query := `
		INSERT INTO mints (address, authority, decimals, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := querier.ExecContext(ctx, query, mint.Address.String(), mint.Authority.String(), int16(mint.Decimals), mint.CreatedAt)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return fmt.Errorf("mint %s: %w", mint.Address, domain.ErrMintAlreadyExists)
		}
		return fmt.Errorf("failed to create mint %s: %w", mint.Address, err)
	}
	return nil
}

func (r *mintRepository) GetMintTx(ctx context.Context, querier domain.Querier, address solana.PublicKey) (*domain.Mint, error) {
	query := `SELECT address, authority, decimals, created_at FROM mints WHERE address = $1`

	var (
		addr, authority string
		decimals        int16
		mint            domain.Mint
	)
	err := querier.QueryRowContext(ctx, query, address.String()).Scan(&addr, &authority, &decimals, &mint.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMintNotFound
		}
		return nil, fmt.Errorf("failed to get mint %s: %w", address, err)
	}
	if mint.Address, err = repository.ParseKey("address", addr); err != nil {
		return nil, err
	}
	if mint.Authority, err = repository.ParseKey("authority", authority); err != nil {
		return nil, err
	}
	mint.Decimals = uint8(decimals)
	return &mint, nil
}
