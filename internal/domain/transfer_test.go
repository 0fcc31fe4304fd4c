package domain

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferInstruction_Message(t *testing.T) {
	in := TransferInstruction{
		Mint:             solana.NewWallet().PublicKey(),
		SourceOwner:      solana.NewWallet().PublicKey(),
		DestinationOwner: solana.NewWallet().PublicKey(),
		Amount:           40,
	}
	msg := in.Message()

	require.Len(t, msg, len(instructionMessageTag)+3*solana.PublicKeyLength+8)
	assert.Equal(t, uint64(40), binary.LittleEndian.Uint64(msg[len(msg)-8:]))

	other := in
	other.Amount = 41
	assert.NotEqual(t, msg, other.Message())

	// Caller-supplied account hints are not part of what the owner signs.
	hinted := in
	addr := solana.NewWallet().PublicKey()
	hinted.SourceAccount = &addr
	assert.Equal(t, msg, hinted.Message())
}

func TestInstructionPayload_Decode(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	dest := solana.NewWallet().PublicKey()
	account := solana.NewWallet().PublicKey()

	in := TransferInstruction{
		Mint:               solana.NewWallet().PublicKey(),
		SourceOwner:        key.PublicKey(),
		DestinationOwner:   dest,
		Amount:             7,
		DestinationAccount: &account,
	}
	sig, err := key.Sign(in.Message())
	require.NoError(t, err)

	payload := NewInstructionPayload(SignedInstruction{Instruction: in, Signature: sig})
	assert.Empty(t, payload.SourceAccount)
	assert.Equal(t, account.String(), payload.DestinationAccount)

	decoded, err := payload.Decode()
	require.NoError(t, err)
	assert.Equal(t, in, decoded.Instruction)
	assert.Equal(t, sig, decoded.Signature)
}

func TestInstructionPayload_DecodeErrors(t *testing.T) {
	valid := InstructionPayload{
		Mint:             solana.NewWallet().PublicKey().String(),
		SourceOwner:      solana.NewWallet().PublicKey().String(),
		DestinationOwner: solana.NewWallet().PublicKey().String(),
		Amount:           1,
		Signature:        solana.Signature{1}.String(),
	}

	tests := []struct {
		name     string
		mutate   func(p *InstructionPayload)
		wantCode ErrorCode
	}{
		{name: "bad mint", mutate: func(p *InstructionPayload) { p.Mint = "???" }, wantCode: CodeInvalidMint},
		{name: "missing mint", mutate: func(p *InstructionPayload) { p.Mint = "" }, wantCode: CodeInvalidMint},
		{name: "bad source", mutate: func(p *InstructionPayload) { p.SourceOwner = "???" }},
		{name: "missing destination", mutate: func(p *InstructionPayload) { p.DestinationOwner = "" }},
		{name: "missing signature", mutate: func(p *InstructionPayload) { p.Signature = " " }},
		{name: "bad signature", mutate: func(p *InstructionPayload) { p.Signature = "abc" }},
		{name: "bad destination account", mutate: func(p *InstructionPayload) { p.DestinationAccount = "???" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := p.Decode()
			require.Error(t, err)
			if tt.wantCode != "" {
				code, ok := CodeOf(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, code)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
