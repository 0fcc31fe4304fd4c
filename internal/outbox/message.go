package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"tokentransfer/internal/domain"
	"tokentransfer/internal/util"
)

// TransferCommittedEvent is the wire form of a committed transfer on the
// events topic. Keys are base58, the amount is in base units.
type TransferCommittedEvent struct {
	EventType          string    `json:"event_type"`
	TransferID         string    `json:"transfer_id"`
	Mint               string    `json:"mint"`
	From               string    `json:"from"`
	To                 string    `json:"to"`
	SourceAccount      string    `json:"source_account"`
	DestinationAccount string    `json:"destination_account"`
	Amount             uint64    `json:"amount"`
	Timestamp          time.Time `json:"timestamp"`
}

func PrepareTransferCommittedPayload(event *domain.TransferEvent) ([]byte, error) {
	return json.Marshal(TransferCommittedEvent{
		EventType:          domain.EventTypeTransferCommitted,
		TransferID:         event.TransferID,
		Mint:               event.Mint.String(),
		From:               event.From.String(),
		To:                 event.To.String(),
		SourceAccount:      event.SourceAccount.String(),
		DestinationAccount: event.DestinationAccount.String(),
		Amount:             event.Amount,
		Timestamp:          event.OccurredAt,
	})
}

// NewTransferMessage builds the pending outbox row for event. Messages are
// keyed by source account so per-account order survives partitioning.
func NewTransferMessage(event *domain.TransferEvent, topic string) (*domain.OutboxMessage, error) {
	payload, err := PrepareTransferCommittedPayload(event)
	if err != nil {
		return nil, fmt.Errorf("marshal transfer event %s: %w", event.TransferID, err)
	}
	return &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   event.TransferID,
		AggregateType: domain.AggregateTypeTransfer,
		MessageType:   domain.EventTypeTransferCommitted,
		Topic:         topic,
		Key:           event.SourceAccount.String(),
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     event.OccurredAt,
	}, nil
}
