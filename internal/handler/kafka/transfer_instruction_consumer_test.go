package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tokentransfer/internal/app/transfer"
	"tokentransfer/internal/domain"
)

type fakeService struct {
	transfer.Service
	refs      []domain.InboundRef
	duplicate bool
	err       error
}

func (s *fakeService) TransferFromInbox(ctx context.Context, ref domain.InboundRef, signed domain.SignedInstruction) (*transfer.Receipt, bool, error) {
	s.refs = append(s.refs, ref)
	if s.err != nil || s.duplicate {
		return nil, s.duplicate, s.err
	}
	return &transfer.Receipt{TransferID: "t-1"}, false, nil
}

func instructionMessage(t *testing.T) kafka.Message {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	in := domain.TransferInstruction{
		Mint:             solana.NewWallet().PublicKey(),
		SourceOwner:      key.PublicKey(),
		DestinationOwner: solana.NewWallet().PublicKey(),
		Amount:           10,
	}
	sig, err := key.Sign(in.Message())
	require.NoError(t, err)
	value, err := json.Marshal(domain.NewInstructionPayload(domain.SignedInstruction{Instruction: in, Signature: sig}))
	require.NoError(t, err)
	return kafka.Message{Topic: "transfer_instructions", Partition: 3, Offset: 99, Value: value}
}

func TestTransferInstructionMessageHandler(t *testing.T) {
	tests := []struct {
		name      string
		value     []byte
		svc       *fakeService
		wantErr   bool
		wantCalls int
	}{
		{name: "applied", svc: &fakeService{}, wantCalls: 1},
		{name: "duplicate", svc: &fakeService{duplicate: true}, wantCalls: 1},
		{name: "rejected transfer is acknowledged", svc: &fakeService{err: domain.NewTransferError(domain.CodeInsufficientFunds, "validate", nil)}, wantCalls: 1},
		{name: "ledger failure is retried", svc: &fakeService{err: domain.NewTransferError(domain.CodeLedgerFailure, "commit", errors.New("connection reset"))}, wantErr: true, wantCalls: 1},
		{name: "untyped error is retried", svc: &fakeService{err: errors.New("boom")}, wantErr: true, wantCalls: 1},
		{name: "malformed json is skipped", value: []byte("{"), svc: &fakeService{}},
		{name: "invalid instruction is skipped", value: []byte(`{"mint":"x"}`), svc: &fakeService{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := instructionMessage(t)
			if tt.value != nil {
				msg.Value = tt.value
			}
			handler := TransferInstructionMessageHandler(tt.svc, "tokentransfer", zap.NewNop())

			err := handler(context.Background(), msg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, tt.svc.refs, tt.wantCalls)
			if tt.wantCalls > 0 {
				assert.Equal(t, domain.InboundRef{
					Topic: "transfer_instructions", Partition: 3, Offset: 99, ConsumerGroup: "tokentransfer",
				}, tt.svc.refs[0])
			}
		})
	}
}
