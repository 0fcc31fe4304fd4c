package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of reasons a transfer can abort.
type ErrorCode string

const (
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeAddressMismatch   ErrorCode = "ADDRESS_MISMATCH"
	CodeInvalidAmount     ErrorCode = "INVALID_AMOUNT"
	CodeInvalidMint       ErrorCode = "INVALID_MINT"
	CodeLedgerFailure     ErrorCode = "LEDGER_FAILURE"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAddressMismatch   = errors.New("address mismatch")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidMint       = errors.New("invalid mint")
	ErrLedgerFailure     = errors.New("ledger failure")
)

var codeSentinels = map[ErrorCode]error{
	CodeInsufficientFunds: ErrInsufficientFunds,
	CodeUnauthorized:      ErrUnauthorized,
	CodeAddressMismatch:   ErrAddressMismatch,
	CodeInvalidAmount:     ErrInvalidAmount,
	CodeInvalidMint:       ErrInvalidMint,
	CodeLedgerFailure:     ErrLedgerFailure,
}

// TransferError is the only error kind a transfer returns to its caller.
// errors.Is matches both the code sentinel (ErrInsufficientFunds, ...) and
// the wrapped cause.
type TransferError struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
}

func (e *TransferError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := codeSentinels[e.Code]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewTransferError(code ErrorCode, op string, err error) error {
	return &TransferError{Code: code, Op: op, Err: err}
}

// CodeOf extracts the taxonomy code from err, if it carries one.
func CodeOf(err error) (ErrorCode, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}
