package mints_repo

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"tokentransfer/internal/domain"
)

type MintRepository interface {
	CreateMintTx(ctx context.Context, querier domain.Querier, mint *domain.Mint) error
	GetMintTx(ctx context.Context, querier domain.Querier, address solana.PublicKey) (*domain.Mint, error)
}
