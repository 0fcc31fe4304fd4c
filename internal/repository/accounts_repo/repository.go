package accounts_repo

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"tokentransfer/internal/domain"
)

type HoldingAccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.HoldingAccount) error
	GetAccountTx(ctx context.Context, querier domain.Querier, address solana.PublicKey) (*domain.HoldingAccount, error)
	// LockAccountsTx must run inside a transaction. Rows are locked in
	// address order.
	LockAccountsTx(ctx context.Context, querier domain.Querier, addresses []solana.PublicKey) (map[solana.PublicKey]*domain.HoldingAccount, error)
	DebitTx(ctx context.Context, querier domain.Querier, address solana.PublicKey, amount uint64) (uint64, error)
	CreditTx(ctx context.Context, querier domain.Querier, address solana.PublicKey, amount uint64) (uint64, error)
}
