package transfer

import (
	"errors"

	"tokentransfer/internal/domain"
)

// report maps err onto the transfer taxonomy. Errors that already carry a
// code pass through; anything else is a ledger failure.
func report(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *domain.TransferError
	if errors.As(err, &te) {
		return err
	}
	return domain.NewTransferError(domain.CodeLedgerFailure, op, err)
}
