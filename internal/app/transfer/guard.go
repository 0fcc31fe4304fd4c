package transfer

import (
	"errors"
	"fmt"

	"tokentransfer/internal/domain"
)

const opAuthorize = "authorize debit"

// Guard decides whether the signer of an instruction may debit its source.
type Guard struct {
	verifier SignatureVerifier
}

func NewGuard(verifier SignatureVerifier) *Guard {
	return &Guard{verifier: verifier}
}

// Authorize checks the signature over the instruction message and that the
// signer owns the resolved source account. It runs before any balance check.
// A missing source account passes here and fails balance validation.
func (g *Guard) Authorize(signed domain.SignedInstruction, res *Resolution) (domain.DebitCapability, error) {
	authority := signed.Instruction.SourceOwner
	if authority.IsZero() {
		return domain.DebitCapability{}, domain.NewTransferError(domain.CodeUnauthorized, opAuthorize, errors.New("authority is empty"))
	}
	if !g.verifier.HasSigned(authority, signed.Instruction.Message(), signed.Signature) {
		return domain.DebitCapability{}, domain.NewTransferError(domain.CodeUnauthorized, opAuthorize,
			fmt.Errorf("signature does not verify for %s", authority))
	}
	if res.Source != nil && !res.Source.Owner.Equals(authority) {
		return domain.DebitCapability{}, domain.NewTransferError(domain.CodeUnauthorized, opAuthorize,
			fmt.Errorf("%s does not own account %s", authority, res.Source.Address))
	}
	return domain.GrantDebit(authority, res.SourceAddress, signed.Signature), nil
}
