package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrAlreadyProcessed = errors.New("inbound message already processed")

// InboundRef identifies a Kafka delivery. A ref is recorded in the same batch
// as the transfer it produced, so a redelivery after commit is detected.
type InboundRef struct {
	Topic         string
	Partition     int
	Offset        int64
	ConsumerGroup string
}

func (r InboundRef) String() string {
	return fmt.Sprintf("%s/%d/%d@%s", r.Topic, r.Partition, r.Offset, r.ConsumerGroup)
}

type InboxMessage struct {
	ID          string
	Ref         InboundRef
	TransferID  string
	ProcessedAt time.Time
}
