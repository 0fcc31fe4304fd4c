package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	instructionMessageTag = "tokentransfer/transfer/v1"

	EventTypeTransferCommitted = "token.transfer.committed"
	AggregateTypeTransfer      = "transfer"
)

var (
	ErrInvalidRequest   = errors.New("invalid transfer request")
	ErrTransferNotFound = errors.New("transfer not found")
)

// TransferInstruction asks to move Amount of Mint from SourceOwner's holding
// account to DestinationOwner's. SourceAccount and DestinationAccount are
// optional caller-supplied addresses; when set they must match derivation.
type TransferInstruction struct {
	Mint               solana.PublicKey
	SourceOwner        solana.PublicKey
	DestinationOwner   solana.PublicKey
	Amount             uint64
	SourceAccount      *solana.PublicKey
	DestinationAccount *solana.PublicKey
}

// Message returns the bytes the source owner signs:
// tag || mint || source owner || destination owner || amount (little endian).
func (i TransferInstruction) Message() []byte {
	msg := make([]byte, 0, len(instructionMessageTag)+3*solana.PublicKeyLength+8)
	msg = append(msg, instructionMessageTag...)
	msg = append(msg, i.Mint[:]...)
	msg = append(msg, i.SourceOwner[:]...)
	msg = append(msg, i.DestinationOwner[:]...)
	msg = binary.LittleEndian.AppendUint64(msg, i.Amount)
	return msg
}

type SignedInstruction struct {
	Instruction TransferInstruction
	Signature   solana.Signature
}

// InstructionPayload is the JSON form of a SignedInstruction shared by the
// HTTP API and the Kafka instruction topic. Keys and signature are base58.
type InstructionPayload struct {
	Mint               string `json:"mint"`
	SourceOwner        string `json:"source_owner"`
	DestinationOwner   string `json:"destination_owner"`
	Amount             uint64 `json:"amount"`
	Signature          string `json:"signature"`
	SourceAccount      string `json:"source_account,omitempty"`
	DestinationAccount string `json:"destination_account,omitempty"`
}

func NewInstructionPayload(signed SignedInstruction) InstructionPayload {
	p := InstructionPayload{
		Mint:             signed.Instruction.Mint.String(),
		SourceOwner:      signed.Instruction.SourceOwner.String(),
		DestinationOwner: signed.Instruction.DestinationOwner.String(),
		Amount:           signed.Instruction.Amount,
		Signature:        signed.Signature.String(),
	}
	if signed.Instruction.SourceAccount != nil {
		p.SourceAccount = signed.Instruction.SourceAccount.String()
	}
	if signed.Instruction.DestinationAccount != nil {
		p.DestinationAccount = signed.Instruction.DestinationAccount.String()
	}
	return p
}

// Decode parses the payload. A malformed mint is reported as InvalidMint;
// every other malformed field wraps ErrInvalidRequest.
func (p InstructionPayload) Decode() (SignedInstruction, error) {
	var signed SignedInstruction

	mint, err := ParseKey("mint", p.Mint)
	if err != nil {
		return signed, NewTransferError(CodeInvalidMint, "decode instruction", err)
	}
	source, err := ParseKey("source_owner", p.SourceOwner)
	if err != nil {
		return signed, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	destination, err := ParseKey("destination_owner", p.DestinationOwner)
	if err != nil {
		return signed, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(p.Signature) == "" {
		return signed, fmt.Errorf("%w: signature is required", ErrInvalidRequest)
	}
	sig, err := solana.SignatureFromBase58(strings.TrimSpace(p.Signature))
	if err != nil {
		return signed, fmt.Errorf("%w: invalid signature: %w", ErrInvalidRequest, err)
	}

	signed.Instruction = TransferInstruction{
		Mint:             mint,
		SourceOwner:      source,
		DestinationOwner: destination,
		Amount:           p.Amount,
	}
	signed.Signature = sig

	if p.SourceAccount != "" {
		addr, err := ParseKey("source_account", p.SourceAccount)
		if err != nil {
			return signed, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		signed.Instruction.SourceAccount = &addr
	}
	if p.DestinationAccount != "" {
		addr, err := ParseKey("destination_account", p.DestinationAccount)
		if err != nil {
			return signed, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		signed.Instruction.DestinationAccount = &addr
	}
	return signed, nil
}

// TransferEvent is the audit record of one committed transfer. From is the
// authority, To the destination owner.
type TransferEvent struct {
	TransferID         string           `json:"transfer_id"`
	Mint               solana.PublicKey `json:"mint"`
	From               solana.PublicKey `json:"from"`
	To                 solana.PublicKey `json:"to"`
	SourceAccount      solana.PublicKey `json:"source_account"`
	DestinationAccount solana.PublicKey `json:"destination_account"`
	Amount             uint64           `json:"amount"`
	OccurredAt         time.Time        `json:"occurred_at"`
}
