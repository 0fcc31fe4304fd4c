// Package postgres is the production ledger backend. A batch is one
// READ COMMITTED transaction; holding accounts are row-locked in address
// order by LockAccounts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"tokentransfer/internal/app/transfer"
	"tokentransfer/internal/domain"
	"tokentransfer/internal/outbox"
	"tokentransfer/internal/repository/accounts_repo"
	"tokentransfer/internal/repository/inbox_repo"
	"tokentransfer/internal/repository/mints_repo"
	"tokentransfer/internal/repository/outbox_repo"
	"tokentransfer/internal/repository/transfers_repo"
)

type Ledger struct {
	db          *sql.DB
	eventsTopic string
	logger      *zap.Logger

	accountRepo  accounts_repo.HoldingAccountRepository
	mintRepo     mints_repo.MintRepository
	transferRepo transfers_repo.TransferRepository
	outboxRepo   outbox_repo.OutboxRepository
	inboxRepo    inbox_repo.InboxRepository
}

var (
	_ transfer.Ledger = (*Ledger)(nil)
	_ outbox.Store    = (*Ledger)(nil)
)

func New(db *sql.DB, eventsTopic string, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:           db,
		eventsTopic:  eventsTopic,
		logger:       logger,
		accountRepo:  accounts_repo.NewAccountRepository(),
		mintRepo:     mints_repo.NewMintRepository(),
		transferRepo: transfers_repo.NewTransferRepository(),
		outboxRepo:   outbox_repo.NewOutboxRepository(),
		inboxRepo:    inbox_repo.NewInboxRepository(),
	}
}

func (l *Ledger) Mint(ctx context.Context, address solana.PublicKey) (*domain.Mint, error) {
	return l.mintRepo.GetMintTx(ctx, l.db, address)
}

func (l *Ledger) HoldingAccount(ctx context.Context, address solana.PublicKey) (*domain.HoldingAccount, error) {
	return l.accountRepo.GetAccountTx(ctx, l.db, address)
}

func (l *Ledger) Transfer(ctx context.Context, transferID string) (*domain.TransferEvent, error) {
	return l.transferRepo.GetByIDTx(ctx, l.db, transferID)
}

// InboxMessage looks up a recorded Kafka delivery.
func (l *Ledger) InboxMessage(ctx context.Context, ref domain.InboundRef) (*domain.InboxMessage, error) {
	return l.inboxRepo.GetMessageByRefTx(ctx, l.db, ref)
}

func (l *Ledger) Begin(ctx context.Context) (transfer.Batch, error) {
	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &batch{ledger: l, tx: tx}, nil
}

func (l *Ledger) ListPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	return l.outboxRepo.GetPendingMessages(ctx, l.db, limit)
}

func (l *Ledger) MarkSent(ctx context.Context, ids []string) error {
	return l.outboxRepo.MarkMessagesAsSent(ctx, l.db, ids)
}

func (l *Ledger) MarkAttemptFailed(ctx context.Context, ids []string, reason string, maxAttempts int) error {
	return l.outboxRepo.MarkAttemptFailed(ctx, l.db, ids, reason, maxAttempts)
}

type batch struct {
	ledger *Ledger
	tx     *sql.Tx
}

func (b *batch) Mint(ctx context.Context, address solana.PublicKey) (*domain.Mint, error) {
	return b.ledger.mintRepo.GetMintTx(ctx, b.tx, address)
}

func (b *batch) HoldingAccount(ctx context.Context, address solana.PublicKey) (*domain.HoldingAccount, error) {
	return b.ledger.accountRepo.GetAccountTx(ctx, b.tx, address)
}

func (b *batch) Transfer(ctx context.Context, transferID string) (*domain.TransferEvent, error) {
	return b.ledger.transferRepo.GetByIDTx(ctx, b.tx, transferID)
}

func (b *batch) LockAccounts(ctx context.Context, addresses ...solana.PublicKey) (map[solana.PublicKey]*domain.HoldingAccount, error) {
	return b.ledger.accountRepo.LockAccountsTx(ctx, b.tx, addresses)
}

func (b *batch) CreateMint(ctx context.Context, mint *domain.Mint) error {
	return b.ledger.mintRepo.CreateMintTx(ctx, b.tx, mint)
}

func (b *batch) CreateAccount(ctx context.Context, account *domain.HoldingAccount) error {
	return b.ledger.accountRepo.CreateAccountTx(ctx, b.tx, account)
}

func (b *batch) Debit(ctx context.Context, capability domain.DebitCapability, address solana.PublicKey, amount uint64) (uint64, error) {
	if !capability.Permits(address) {
		return 0, fmt.Errorf("debit %s: %w", address, domain.ErrCapabilityRequired)
	}
	return b.ledger.accountRepo.DebitTx(ctx, b.tx, address, amount)
}

func (b *batch) Credit(ctx context.Context, address solana.PublicKey, amount uint64) (uint64, error) {
	return b.ledger.accountRepo.CreditTx(ctx, b.tx, address, amount)
}

// AppendEvent writes the transfer record and its outbox message.
func (b *batch) AppendEvent(ctx context.Context, event *domain.TransferEvent) error {
	if err := b.ledger.transferRepo.CreateTx(ctx, b.tx, event); err != nil {
		return err
	}
	msg, err := outbox.NewTransferMessage(event, b.ledger.eventsTopic)
	if err != nil {
		return err
	}
	return b.ledger.outboxRepo.CreateMessageTx(ctx, b.tx, msg)
}

func (b *batch) RecordInbound(ctx context.Context, ref domain.InboundRef, transferID string) error {
	return b.ledger.inboxRepo.CreateMessageTx(ctx, b.tx, &domain.InboxMessage{
		ID:          ref.String(),
		Ref:         ref,
		TransferID:  transferID,
		ProcessedAt: timeNow(),
	})
}

func (b *batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		b.ledger.logger.Error("Ledger transaction commit failed", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback is a no-op after Commit.
func (b *batch) Rollback() error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

var timeNow = func() time.Time { return time.Now().UTC() }
