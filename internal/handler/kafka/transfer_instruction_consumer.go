package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"tokentransfer/internal/app/transfer"
	"tokentransfer/internal/domain"
	kafka_infra "tokentransfer/internal/infrastructure/kafka"
)

// TransferInstructionMessageHandler runs signed instructions read from Kafka.
// Malformed messages and rejected transfers are logged and acknowledged;
// only ledger failures are returned, so the consumer retries the message.
func TransferInstructionMessageHandler(service transfer.Service, consumerGroup string, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		ref := domain.InboundRef{
			Topic:         msg.Topic,
			Partition:     msg.Partition,
			Offset:        msg.Offset,
			ConsumerGroup: consumerGroup,
		}
		log := logger.With(zap.String("inbound_ref", ref.String()))

		var payload domain.InstructionPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			log.Error("Failed to unmarshal transfer instruction, skipping", zap.Error(err), zap.ByteString("value", msg.Value))
			return nil
		}
		signed, err := payload.Decode()
		if err != nil {
			log.Warn("Invalid transfer instruction, skipping", zap.Error(err))
			return nil
		}

		receipt, duplicate, err := service.TransferFromInbox(ctx, ref, signed)
		if err != nil {
			if code, ok := domain.CodeOf(err); ok && code != domain.CodeLedgerFailure {
				log.Warn("Transfer instruction rejected", zap.String("code", string(code)), zap.Error(err))
				return nil
			}
			return fmt.Errorf("process transfer instruction %s: %w", ref, err)
		}
		if duplicate {
			log.Info("Transfer instruction already applied, acknowledging")
			return nil
		}

		log.Info("Transfer instruction applied", zap.String("transfer_id", receipt.TransferID))
		return nil
	}
}
