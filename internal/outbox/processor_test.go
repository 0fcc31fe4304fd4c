package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tokentransfer/internal/domain"
	"tokentransfer/internal/ledger/memory"
	"tokentransfer/internal/outbox"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type produced struct {
	key, topic string
	value      []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	messages []produced
}

func (p *fakePublisher) Produce(ctx context.Context, key, topic string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures != 0 {
		p.failures--
		return p.err
	}
	p.messages = append(p.messages, produced{key: key, topic: topic, value: value})
	return nil
}

func (p *fakePublisher) sent() []produced {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]produced(nil), p.messages...)
}

func seedOutbox(t *testing.T, l *memory.Ledger, n int) {
	t.Helper()
	b, err := l.Begin(context.Background())
	require.NoError(t, err)
	base := time.Now()
	for i := 0; i < n; i++ {
		require.NoError(t, b.AppendEvent(context.Background(), &domain.TransferEvent{
			TransferID: string(rune('a' + i)),
			Amount:     uint64(i + 1),
			OccurredAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}
	require.NoError(t, b.Commit())
}

func countStatus(l *memory.Ledger, status domain.OutboxMessageStatus) int {
	n := 0
	for _, msg := range l.OutboxMessages() {
		if msg.Status == status {
			n++
		}
	}
	return n
}

func TestProcessOnce_PublishesAndMarksSent(t *testing.T) {
	l := memory.New("transfer_events")
	seedOutbox(t, l, 3)
	pub := &fakePublisher{}
	p := outbox.NewProcessor(l, pub, outbox.Config{BatchSize: 2}, zap.NewNop())

	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	sent := pub.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "transfer_events", sent[0].topic)
	assert.Contains(t, string(sent[0].value), `"transfer_id":"a"`)
	assert.Equal(t, 3, countStatus(l, domain.OutboxStatusSent))
}

func TestProcessOnce_FailedAttemptsExhaust(t *testing.T) {
	l := memory.New("transfer_events")
	seedOutbox(t, l, 1)
	pub := &fakePublisher{failures: 2, err: errors.New("broker unavailable")}
	p := outbox.NewProcessor(l, pub, outbox.Config{MaxAttempts: 2, BreakerFailures: 10}, zap.NewNop())

	for i := 0; i < 3; i++ {
		n, err := p.ProcessOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}

	msgs := l.OutboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.OutboxStatusFailed, msgs[0].Status)
	assert.Equal(t, 2, msgs[0].Attempts)
	assert.Equal(t, "broker unavailable", msgs[0].LastError)
	assert.Equal(t, 2, pub.calls)
}

func TestProcessOnce_BreakerPostponesMessages(t *testing.T) {
	l := memory.New("transfer_events")
	seedOutbox(t, l, 5)
	pub := &fakePublisher{failures: 100, err: errors.New("broker unavailable")}
	core, logs := observer.New(zapcore.InfoLevel)
	p := outbox.NewProcessor(l, pub, outbox.Config{
		MaxAttempts:     10,
		BreakerFailures: 2,
		BreakerCooldown: time.Hour,
	}, zap.New(core))

	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, pub.calls, "breaker must stop publishing after it opens")

	postponed := logs.FilterMessage("Outbox publisher breaker is open, postponing remaining messages").All()
	require.Len(t, postponed, 1)
	assert.EqualValues(t, 3, postponed[0].ContextMap()["postponed"])
	assert.Len(t, logs.FilterMessage("Outbox publisher circuit breaker changed state").All(), 1)

	assert.Equal(t, 5, countStatus(l, domain.OutboxStatusPending))
}

func TestRun_StopsOnCancel(t *testing.T) {
	l := memory.New("transfer_events")
	seedOutbox(t, l, 2)
	pub := &fakePublisher{}
	p := outbox.NewProcessor(l, pub, outbox.Config{PollInterval: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return countStatus(l, domain.OutboxStatusSent) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop after cancel")
	}
}
