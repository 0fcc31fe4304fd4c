// Package memory is an in-process ledger backend. A batch holds the ledger's
// write lock from Begin until Commit or Rollback, so batches are serialized.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"tokentransfer/internal/app/transfer"
	"tokentransfer/internal/domain"
	"tokentransfer/internal/outbox"
)

var ErrBatchDone = errors.New("ledger batch already committed or rolled back")

type Ledger struct {
	mu          sync.RWMutex
	eventsTopic string
	now         func() time.Time

	mints     map[solana.PublicKey]domain.Mint
	accounts  map[solana.PublicKey]domain.HoldingAccount
	transfers map[string]domain.TransferEvent
	outbox    []*domain.OutboxMessage
	inbox     map[domain.InboundRef]domain.InboxMessage
}

var (
	_ transfer.Ledger = (*Ledger)(nil)
	_ outbox.Store    = (*Ledger)(nil)
)

func New(eventsTopic string) *Ledger {
	return &Ledger{
		eventsTopic: eventsTopic,
		now:         time.Now,
		mints:       make(map[solana.PublicKey]domain.Mint),
		accounts:    make(map[solana.PublicKey]domain.HoldingAccount),
		transfers:   make(map[string]domain.TransferEvent),
		inbox:       make(map[domain.InboundRef]domain.InboxMessage),
	}
}

func (l *Ledger) Mint(ctx context.Context, address solana.PublicKey) (*domain.Mint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mint(address)
}

func (l *Ledger) HoldingAccount(ctx context.Context, address solana.PublicKey) (*domain.HoldingAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account(address)
}

func (l *Ledger) Transfer(ctx context.Context, transferID string) (*domain.TransferEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.transfer(transferID)
}

func (l *Ledger) mint(address solana.PublicKey) (*domain.Mint, error) {
	m, ok := l.mints[address]
	if !ok {
		return nil, domain.ErrMintNotFound
	}
	return &m, nil
}

func (l *Ledger) account(address solana.PublicKey) (*domain.HoldingAccount, error) {
	acc, ok := l.accounts[address]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (l *Ledger) transfer(transferID string) (*domain.TransferEvent, error) {
	ev, ok := l.transfers[transferID]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return &ev, nil
}

// Begin blocks until no other batch is open.
func (l *Ledger) Begin(ctx context.Context) (transfer.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	return &batch{
		ledger:    l,
		mints:     make(map[solana.PublicKey]domain.Mint),
		accounts:  make(map[solana.PublicKey]domain.HoldingAccount),
		transfers: make(map[string]domain.TransferEvent),
		inbox:     make(map[domain.InboundRef]domain.InboxMessage),
	}, nil
}

// ListPending returns up to limit pending outbox messages, oldest first.
func (l *Ledger) ListPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.OutboxMessage
	for _, msg := range l.outbox {
		if len(out) == limit {
			break
		}
		if msg.Status == domain.OutboxStatusPending {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (l *Ledger) MarkSent(ctx context.Context, ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	for _, msg := range l.pick(ids) {
		msg.Status = domain.OutboxStatusSent
		msg.SentAt = &now
	}
	return nil
}

func (l *Ledger) MarkAttemptFailed(ctx context.Context, ids []string, reason string, maxAttempts int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.pick(ids) {
		msg.Attempts++
		msg.LastError = reason
		if maxAttempts > 0 && msg.Attempts >= maxAttempts {
			msg.Status = domain.OutboxStatusFailed
		}
	}
	return nil
}

// OutboxMessages returns a copy of every outbox message, oldest first.
func (l *Ledger) OutboxMessages() []domain.OutboxMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.OutboxMessage, 0, len(l.outbox))
	for _, msg := range l.outbox {
		out = append(out, *msg)
	}
	return out
}

func (l *Ledger) pick(ids []string) []*domain.OutboxMessage {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*domain.OutboxMessage
	for _, msg := range l.outbox {
		if _, ok := want[msg.ID]; ok && msg.Status == domain.OutboxStatusPending {
			out = append(out, msg)
		}
	}
	return out
}

// batch stages writes in its own maps and folds them into the ledger on
// Commit. Reads see staged writes first.
type batch struct {
	ledger *Ledger
	done   bool

	mints     map[solana.PublicKey]domain.Mint
	accounts  map[solana.PublicKey]domain.HoldingAccount
	transfers map[string]domain.TransferEvent
	outbox    []*domain.OutboxMessage
	inbox     map[domain.InboundRef]domain.InboxMessage
}

func (b *batch) Mint(ctx context.Context, address solana.PublicKey) (*domain.Mint, error) {
	if b.done {
		return nil, ErrBatchDone
	}
	if m, ok := b.mints[address]; ok {
		return &m, nil
	}
	return b.ledger.mint(address)
}

func (b *batch) HoldingAccount(ctx context.Context, address solana.PublicKey) (*domain.HoldingAccount, error) {
	if b.done {
		return nil, ErrBatchDone
	}
	if acc, ok := b.accounts[address]; ok {
		return &acc, nil
	}
	return b.ledger.account(address)
}

func (b *batch) Transfer(ctx context.Context, transferID string) (*domain.TransferEvent, error) {
	if b.done {
		return nil, ErrBatchDone
	}
	if ev, ok := b.transfers[transferID]; ok {
		return &ev, nil
	}
	return b.ledger.transfer(transferID)
}

func (b *batch) LockAccounts(ctx context.Context, addresses ...solana.PublicKey) (map[solana.PublicKey]*domain.HoldingAccount, error) {
	if b.done {
		return nil, ErrBatchDone
	}
	out := make(map[solana.PublicKey]*domain.HoldingAccount, len(addresses))
	for _, addr := range addresses {
		acc, err := b.HoldingAccount(ctx, addr)
		if errors.Is(err, domain.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[addr] = acc
	}
	return out, nil
}

func (b *batch) CreateMint(ctx context.Context, mint *domain.Mint) error {
	if b.done {
		return ErrBatchDone
	}
	if _, err := b.Mint(ctx, mint.Address); err == nil {
		return fmt.Errorf("mint %s: %w", mint.Address, domain.ErrMintAlreadyExists)
	}
	b.mints[mint.Address] = *mint
	return nil
}

func (b *batch) CreateAccount(ctx context.Context, account *domain.HoldingAccount) error {
	if b.done {
		return ErrBatchDone
	}
	if _, err := b.Mint(ctx, account.Mint); err != nil {
		return fmt.Errorf("account %s: %w", account.Address, err)
	}
	if _, err := b.HoldingAccount(ctx, account.Address); err == nil {
		return fmt.Errorf("account %s: %w", account.Address, domain.ErrAccountAlreadyExists)
	}
	b.accounts[account.Address] = *account
	return nil
}

func (b *batch) Debit(ctx context.Context, capability domain.DebitCapability, address solana.PublicKey, amount uint64) (uint64, error) {
	if b.done {
		return 0, ErrBatchDone
	}
	if !capability.Permits(address) {
		return 0, fmt.Errorf("debit %s: %w", address, domain.ErrCapabilityRequired)
	}
	acc, err := b.HoldingAccount(ctx, address)
	if err != nil {
		return 0, err
	}
	if acc.Balance < amount {
		return 0, fmt.Errorf("debit %d from %s holding %d: %w", amount, address, acc.Balance, domain.ErrBalanceTooLow)
	}
	acc.Balance -= amount
	acc.UpdatedAt = b.ledger.now().UTC()
	b.accounts[address] = *acc
	return acc.Balance, nil
}

func (b *batch) Credit(ctx context.Context, address solana.PublicKey, amount uint64) (uint64, error) {
	if b.done {
		return 0, ErrBatchDone
	}
	acc, err := b.HoldingAccount(ctx, address)
	if err != nil {
		return 0, err
	}
	if acc.Balance > math.MaxUint64-amount {
		return 0, fmt.Errorf("credit %d to %s: %w", amount, address, domain.ErrBalanceOverflow)
	}
	acc.Balance += amount
	acc.UpdatedAt = b.ledger.now().UTC()
	b.accounts[address] = *acc
	return acc.Balance, nil
}

func (b *batch) AppendEvent(ctx context.Context, event *domain.TransferEvent) error {
	if b.done {
		return ErrBatchDone
	}
	msg, err := outbox.NewTransferMessage(event, b.ledger.eventsTopic)
	if err != nil {
		return err
	}
	b.transfers[event.TransferID] = *event
	b.outbox = append(b.outbox, msg)
	return nil
}

func (b *batch) RecordInbound(ctx context.Context, ref domain.InboundRef, transferID string) error {
	if b.done {
		return ErrBatchDone
	}
	_, staged := b.inbox[ref]
	_, committed := b.ledger.inbox[ref]
	if staged || committed {
		return fmt.Errorf("%s: %w", ref, domain.ErrAlreadyProcessed)
	}
	b.inbox[ref] = domain.InboxMessage{
		ID:          ref.String(),
		Ref:         ref,
		TransferID:  transferID,
		ProcessedAt: b.ledger.now().UTC(),
	}
	return nil
}

func (b *batch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	l := b.ledger
	for addr, m := range b.mints {
		l.mints[addr] = m
	}
	for addr, acc := range b.accounts {
		l.accounts[addr] = acc
	}
	for id, ev := range b.transfers {
		l.transfers[id] = ev
	}
	for ref, msg := range b.inbox {
		l.inbox[ref] = msg
	}
	sort.SliceStable(b.outbox, func(i, j int) bool { return b.outbox[i].CreatedAt.Before(b.outbox[j].CreatedAt) })
	l.outbox = append(l.outbox, b.outbox...)
	b.finish()
	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (b *batch) Rollback() error {
	if b.done {
		return nil
	}
	b.finish()
	return nil
}

func (b *batch) finish() {
	b.done = true
	b.ledger.mu.Unlock()
}
