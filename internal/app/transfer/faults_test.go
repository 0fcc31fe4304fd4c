package transfer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"tokentransfer/internal/app/transfer"
	"tokentransfer/internal/domain"
	"tokentransfer/internal/funding"
)

var errInjected = errors.New("injected ledger fault")

// faultyLedger hands out batches that fail (or panic) at one named step.
// Mint genesis runs through the same ledger, so faults are armed afterwards.
type faultyLedger struct {
	transfer.Ledger
	failAt  string
	panicAt string
	commit  error
}

func (l *faultyLedger) Begin(ctx context.Context) (transfer.Batch, error) {
	if l.failAt == "begin" {
		return nil, errInjected
	}
	b, err := l.Ledger.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyBatch{Batch: b, ledger: l}, nil
}

type faultyBatch struct {
	transfer.Batch
	ledger *faultyLedger
}

func (b *faultyBatch) trip(step string) error {
	if b.ledger.panicAt == step {
		panic("fault at " + step)
	}
	if b.ledger.failAt == step {
		return errInjected
	}
	return nil
}

func (b *faultyBatch) LockAccounts(ctx context.Context, addresses ...solana.PublicKey) (map[solana.PublicKey]*domain.HoldingAccount, error) {
	if err := b.trip("lock"); err != nil {
		return nil, err
	}
	return b.Batch.LockAccounts(ctx, addresses...)
}

func (b *faultyBatch) CreateAccount(ctx context.Context, account *domain.HoldingAccount) error {
	if err := b.trip("create"); err != nil {
		return err
	}
	return b.Batch.CreateAccount(ctx, account)
}

func (b *faultyBatch) Debit(ctx context.Context, capability domain.DebitCapability, address solana.PublicKey, amount uint64) (uint64, error) {
	if err := b.trip("debit"); err != nil {
		return 0, err
	}
	return b.Batch.Debit(ctx, capability, address, amount)
}

func (b *faultyBatch) Credit(ctx context.Context, address solana.PublicKey, amount uint64) (uint64, error) {
	if err := b.trip("credit"); err != nil {
		return 0, err
	}
	return b.Batch.Credit(ctx, address, amount)
}

func (b *faultyBatch) AppendEvent(ctx context.Context, event *domain.TransferEvent) error {
	if err := b.trip("event"); err != nil {
		return err
	}
	return b.Batch.AppendEvent(ctx, event)
}

func (b *faultyBatch) Commit() error {
	if b.ledger.commit != nil {
		_ = b.Batch.Rollback()
		return b.ledger.commit
	}
	return b.Batch.Commit()
}

// switchFunder delegates to the default rent schedule until failing is set.
type switchFunder struct {
	failing bool
}

func (f *switchFunder) Fund(ctx context.Context, payer, account solana.PublicKey) (uint64, error) {
	if f.failing {
		return 0, funding.ErrNoPayer
	}
	return funding.DefaultRentSchedule().Fund(ctx, payer, account)
}

func newFaultyFixture(t *testing.T) (*fixture, *faultyLedger) {
	t.Helper()
	var faulty *faultyLedger
	f := newFixtureWith(t, func(l transfer.Ledger) transfer.Ledger {
		faulty = &faultyLedger{Ledger: l}
		return faulty
	}, funding.DefaultRentSchedule())
	return f, faulty
}

func TestTransfer_LedgerFaultLeavesNoTrace(t *testing.T) {
	for _, step := range []string{"begin", "lock", "create", "debit", "credit", "event"} {
		t.Run(step, func(t *testing.T) {
			f, faulty := newFaultyFixture(t)
			o1 := newKey(t)
			o2 := solana.NewWallet().PublicKey()
			f.registerMint(o1.PublicKey(), 100)
			faulty.failAt = step

			_, err := f.service.Transfer(context.Background(), sign(t, o1, f.instruction(o1, o2, 40)))
			requireCode(t, err, domain.CodeLedgerFailure)
			assert.ErrorIs(t, err, errInjected)

			src, _ := f.balance(o1.PublicKey())
			assert.Equal(t, uint64(100), src)
			_, exists := f.balance(o2)
			assert.False(t, exists)
			assert.Empty(t, f.ledger.OutboxMessages())

			aborted := f.logs.FilterMessage("Transfer aborted").All()
			if step == "begin" {
				assert.Len(t, f.logs.FilterMessage("Failed to begin ledger batch").All(), 1)
				return
			}
			require.Len(t, aborted, 1)
			assert.Equal(t, zapcore.ErrorLevel, aborted[0].Level)
		})
	}
}

func TestTransfer_CommitFailure(t *testing.T) {
	f, faulty := newFaultyFixture(t)
	o1 := newKey(t)
	o2 := solana.NewWallet().PublicKey()
	f.registerMint(o1.PublicKey(), 100)
	faulty.commit = errInjected

	_, err := f.service.Transfer(context.Background(), sign(t, o1, f.instruction(o1, o2, 40)))
	requireCode(t, err, domain.CodeLedgerFailure)

	src, _ := f.balance(o1.PublicKey())
	assert.Equal(t, uint64(100), src)
	assert.Empty(t, f.ledger.OutboxMessages())
}

func TestTransfer_PanicRollsBackAndReleasesLedger(t *testing.T) {
	f, faulty := newFaultyFixture(t)
	o1 := newKey(t)
	o2 := solana.NewWallet().PublicKey()
	f.registerMint(o1.PublicKey(), 100)
	faulty.panicAt = "credit"

	assert.Panics(t, func() {
		_, _ = f.service.Transfer(context.Background(), sign(t, o1, f.instruction(o1, o2, 40)))
	})

	src, _ := f.balance(o1.PublicKey())
	assert.Equal(t, uint64(100), src)

	faulty.panicAt = ""
	receipt, err := f.service.Transfer(context.Background(), sign(t, o1, f.instruction(o1, o2, 40)))
	require.NoError(t, err)
	assert.Equal(t, uint64(60), receipt.Source.Balance)
}

func TestTransfer_FunderFailure(t *testing.T) {
	funder := &switchFunder{}
	f := newFixtureWith(t, nil, funder)
	o1 := newKey(t)
	o2 := solana.NewWallet().PublicKey()
	existing := solana.NewWallet().PublicKey()
	f.registerMint(o1.PublicKey(), 100)
	_, err := f.service.Transfer(context.Background(), sign(t, o1, f.instruction(o1, existing, 10)))
	require.NoError(t, err)
	funder.failing = true

	_, err = f.service.Transfer(context.Background(), sign(t, o1, f.instruction(o1, o2, 40)))
	requireCode(t, err, domain.CodeLedgerFailure)
	assert.ErrorIs(t, err, funding.ErrNoPayer)
	_, exists := f.balance(o2)
	assert.False(t, exists)

	// no funding is needed when the destination already exists
	_, err = f.service.Transfer(context.Background(), sign(t, o1, f.instruction(o1, existing, 10)))
	require.NoError(t, err)
	src, _ := f.balance(o1.PublicKey())
	assert.Equal(t, uint64(80), src)
}
