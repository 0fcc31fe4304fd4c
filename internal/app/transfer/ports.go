package transfer

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"tokentransfer/internal/domain"
)

// Reader exposes point lookups. Missing records are reported with
// domain.ErrMintNotFound / domain.ErrAccountNotFound.
type Reader interface {
	Mint(ctx context.Context, address solana.PublicKey) (*domain.Mint, error)
	HoldingAccount(ctx context.Context, address solana.PublicKey) (*domain.HoldingAccount, error)
	Transfer(ctx context.Context, transferID string) (*domain.TransferEvent, error)
}

// Ledger is the balance-storage engine. Everything written through one Batch
// becomes visible on Commit, or not at all.
type Ledger interface {
	Reader
	Begin(ctx context.Context) (Batch, error)
}

type Batch interface {
	Reader

	// LockAccounts loads the given accounts and holds them exclusively until
	// the batch ends. Absent accounts are missing from the result map.
	LockAccounts(ctx context.Context, addresses ...solana.PublicKey) (map[solana.PublicKey]*domain.HoldingAccount, error)

	CreateMint(ctx context.Context, mint *domain.Mint) error
	CreateAccount(ctx context.Context, account *domain.HoldingAccount) error

	// Debit and Credit return the balance after the mutation.
	Debit(ctx context.Context, capability domain.DebitCapability, address solana.PublicKey, amount uint64) (uint64, error)
	Credit(ctx context.Context, address solana.PublicKey, amount uint64) (uint64, error)

	AppendEvent(ctx context.Context, event *domain.TransferEvent) error

	// RecordInbound returns domain.ErrAlreadyProcessed for a ref that was
	// already committed.
	RecordInbound(ctx context.Context, ref domain.InboundRef, transferID string) error

	Commit() error
	Rollback() error
}

// Funder pays the storage deposit of a newly created holding account.
type Funder interface {
	Fund(ctx context.Context, payer, account solana.PublicKey) (deposit uint64, err error)
}

type SignatureVerifier interface {
	HasSigned(identity solana.PublicKey, message []byte, signature solana.Signature) bool
}
