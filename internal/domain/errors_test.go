package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransferError_Is(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransferError(CodeLedgerFailure, "debit", cause)

	assert.ErrorIs(t, err, ErrLedgerFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "[LEDGER_FAILURE] debit: connection reset", err.Error())

	wrapped := fmt.Errorf("handler: %w", err)
	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeLedgerFailure, code)
}

func TestTransferError_WithoutCause(t *testing.T) {
	err := NewTransferError(CodeUnauthorized, "authorize", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "[UNAUTHORIZED] authorize", err.Error())
}

func TestCodeOf_PlainError(t *testing.T) {
	_, ok := CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestCodeSentinels_CoverEveryCode(t *testing.T) {
	for _, code := range []ErrorCode{
		CodeInsufficientFunds, CodeUnauthorized, CodeAddressMismatch,
		CodeInvalidAmount, CodeInvalidMint, CodeLedgerFailure,
	} {
		_, ok := codeSentinels[code]
		assert.True(t, ok, "code %s has no sentinel", code)
	}
}
