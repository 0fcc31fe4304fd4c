package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. A nil return commits the offset;
// an error makes the consumer retry the same message.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

type Consumer interface {
	Consume(ctx context.Context) error
	Close() error
}

type kafkaConsumer struct {
	reader     *kafka.Reader
	handler    MessageHandler
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewConsumer(brokerURLs []string, topic, groupID string, handler MessageHandler, logger *zap.Logger) Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:                brokerURLs,
		GroupID:                groupID,
		Topic:                  topic,
		MinBytes:               10e3,
		MaxBytes:               10e6,
		ReadBatchTimeout:       time.Second,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
		HeartbeatInterval:      3 * time.Second,
		PartitionWatchInterval: 5 * time.Second,
		MaxAttempts:            3,
	})

	return &kafkaConsumer{
		reader:     reader,
		handler:    handler,
		retryDelay: time.Second,
		logger:     logger.With(zap.String("topic", topic), zap.String("group_id", groupID)),
	}
}

// Consume fetches and handles messages until ctx is cancelled. Offsets are
// committed explicitly after a successful handler call.
func (c *kafkaConsumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer starting")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, kafka.ErrGroupClosed) || errors.Is(err, context.Canceled) {
				c.logger.Info("Kafka consumer stopped")
				return nil
			}
			c.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		fields := []zap.Field{
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
		}
		c.logger.Debug("Received Kafka message", fields...)

		// the reader has already advanced past msg, so a failed message is
		// retried in place until it succeeds or the consumer stops
		for {
			err := c.handler(ctx, msg)
			if err == nil {
				break
			}
			c.logger.Error("Error handling Kafka message, retrying", append(fields, zap.Error(err))...)
			if !sleep(ctx, c.retryDelay) {
				c.logger.Info("Kafka consumer stopped with an unhandled message, offset not committed", fields...)
				return nil
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit Kafka offset", append(fields, zap.Error(err))...)
			continue
		}
		c.logger.Debug("Kafka message offset committed", fields...)
	}
}

func (c *kafkaConsumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close kafka consumer: %w", err)
	}
	c.logger.Info("Kafka consumer closed")
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
