package transfer_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokentransfer/internal/app/transfer"
	"tokentransfer/internal/domain"
)

type stubVerifier bool

func (v stubVerifier) HasSigned(solana.PublicKey, []byte, solana.Signature) bool { return bool(v) }

func TestGuard_Authorize(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	source := solana.NewWallet().PublicKey()
	sig := solana.Signature{1}
	signed := domain.SignedInstruction{
		Instruction: domain.TransferInstruction{SourceOwner: owner, Amount: 1},
		Signature:   sig,
	}

	tests := []struct {
		name     string
		verifier stubVerifier
		signed   domain.SignedInstruction
		source   *domain.HoldingAccount
		wantErr  bool
	}{
		{name: "owner signed", verifier: true, signed: signed, source: &domain.HoldingAccount{Address: source, Owner: owner}},
		{name: "missing source passes", verifier: true, signed: signed},
		{name: "bad signature", verifier: false, signed: signed, source: &domain.HoldingAccount{Address: source, Owner: owner}, wantErr: true},
		{name: "not the owner", verifier: true, signed: signed, source: &domain.HoldingAccount{Address: source, Owner: solana.NewWallet().PublicKey()}, wantErr: true},
		{name: "empty authority", verifier: true, signed: domain.SignedInstruction{Signature: sig}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &transfer.Resolution{SourceAddress: source, Source: tt.source}
			capability, err := transfer.NewGuard(tt.verifier).Authorize(tt.signed, res)
			if tt.wantErr {
				requireCode(t, err, domain.CodeUnauthorized)
				assert.False(t, capability.Permits(source))
				return
			}
			require.NoError(t, err)
			assert.True(t, capability.Permits(source))
			assert.Equal(t, owner, capability.Authority())
		})
	}
}

func TestValidateBalance(t *testing.T) {
	acc := &domain.HoldingAccount{Balance: 10}

	assert.NoError(t, transfer.ValidateBalance(10, acc))
	assert.NoError(t, transfer.ValidateBalance(1, acc))
	requireCode(t, transfer.ValidateBalance(0, acc), domain.CodeInvalidAmount)
	requireCode(t, transfer.ValidateBalance(11, acc), domain.CodeInsufficientFunds)
	requireCode(t, transfer.ValidateBalance(1, nil), domain.CodeInsufficientFunds)
}

func TestResolver_Resolve(t *testing.T) {
	f := newFixture(t)
	o1 := newKey(t)
	o2 := solana.NewWallet().PublicKey()
	f.registerMint(o1.PublicKey(), 100)
	resolver := transfer.NewResolver(f.deriver)

	t.Run("derives both accounts", func(t *testing.T) {
		batch, err := f.ledger.Begin(context.Background())
		require.NoError(t, err)
		defer batch.Rollback()

		res, err := resolver.Resolve(context.Background(), batch, f.instruction(o1, o2, 5))
		require.NoError(t, err)
		assert.Equal(t, f.deriver.HoldingAddress(o1.PublicKey(), f.mint), res.SourceAddress)
		assert.Equal(t, f.deriver.HoldingAddress(o2, f.mint), res.DestinationAddress)
		require.NotNil(t, res.Source)
		assert.Equal(t, uint64(100), res.Source.Balance)
		assert.Nil(t, res.Destination)
		assert.True(t, res.CreateDestination)
		assert.False(t, res.SelfTransfer())
		assert.Equal(t, uint8(6), res.Mint.Decimals)
	})

	t.Run("accepts matching supplied addresses", func(t *testing.T) {
		batch, err := f.ledger.Begin(context.Background())
		require.NoError(t, err)
		defer batch.Rollback()

		in := f.instruction(o1, o1.PublicKey(), 5)
		src := f.deriver.HoldingAddress(o1.PublicKey(), f.mint)
		in.SourceAccount = &src
		in.DestinationAccount = &src

		res, err := resolver.Resolve(context.Background(), batch, in)
		require.NoError(t, err)
		assert.True(t, res.SelfTransfer())
		assert.False(t, res.CreateDestination)
	})
}
