package transfer

import (
	"fmt"

	"tokentransfer/internal/domain"
)

const opValidate = "validate balance"

// ValidateBalance requires a positive amount no larger than the source
// balance. A zero amount is rejected.
func ValidateBalance(amount uint64, source *domain.HoldingAccount) error {
	if amount == 0 {
		return domain.NewTransferError(domain.CodeInvalidAmount, opValidate, fmt.Errorf("amount must be positive"))
	}
	if source == nil {
		return domain.NewTransferError(domain.CodeInsufficientFunds, opValidate, domain.ErrAccountNotFound)
	}
	if source.Balance < amount {
		return domain.NewTransferError(domain.CodeInsufficientFunds, opValidate,
			fmt.Errorf("account %s holds %d, requested %d", source.Address, source.Balance, amount))
	}
	return nil
}
