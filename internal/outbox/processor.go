package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"tokentransfer/internal/domain"
)

// Store is the outbox side of a ledger backend.
type Store interface {
	ListPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, ids []string) error
	// MarkAttemptFailed bumps the attempt counter; messages reaching
	// maxAttempts become FAILED and are no longer listed.
	MarkAttemptFailed(ctx context.Context, ids []string, reason string, maxAttempts int) error
}

type Publisher interface {
	Produce(ctx context.Context, key, topic string, value []byte) error
}

type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
	MaxAttempts  int

	// BreakerFailures consecutive publish failures open the breaker for
	// BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Processor relays committed outbox messages to Kafka. Delivery is
// at-least-once; run a single Processor per outbox table.
type Processor struct {
	store     Store
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker
	cfg       Config
	logger    *zap.Logger
}

func NewProcessor(store Store, publisher Publisher, cfg Config, logger *zap.Logger) *Processor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	p := &Processor{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "outbox-publisher",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Outbox publisher circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return p
}

// Run polls until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.cfg.PollInterval))
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped")
			return nil
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Outbox poll failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce publishes one batch of pending messages and returns how many
// were sent.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	defer cancel()

	messages, err := p.store.ListPending(pollCtx, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found")
		return 0, nil
	}
	p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

	sent := make([]string, 0, len(messages))
	for i, msg := range messages {
		_, err := p.breaker.Execute(func() (interface{}, error) {
			return nil, p.publisher.Produce(pollCtx, msg.Key, msg.Topic, msg.Payload)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			p.logger.Warn("Outbox publisher breaker is open, postponing remaining messages", zap.Int("postponed", len(messages)-i))
			break
		}
		if err != nil {
			p.logger.Error("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Int("attempt", msg.Attempts+1),
				zap.Error(err))
			if markErr := p.store.MarkAttemptFailed(pollCtx, []string{msg.ID}, err.Error(), p.cfg.MaxAttempts); markErr != nil {
				p.logger.Error("Failed to record outbox publish failure", zap.String("message_id", msg.ID), zap.Error(markErr))
			}
			continue
		}
		sent = append(sent, msg.ID)
	}

	if len(sent) == 0 {
		return 0, nil
	}
	if err := p.store.MarkSent(pollCtx, sent); err != nil {
		return 0, err
	}
	p.logger.Info("Outbox messages published", zap.Int("count", len(sent)))
	return len(sent), nil
}
