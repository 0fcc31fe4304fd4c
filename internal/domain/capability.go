package domain

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var ErrCapabilityRequired = errors.New("debit capability does not cover this account")

// DebitCapability is proof that a verified signer may debit exactly one
// holding account. Ledger implementations refuse debits without one.
type DebitCapability struct {
	authority solana.PublicKey
	source    solana.PublicKey
	signature solana.Signature
}

// GrantDebit is called by the authorization guard once the signature and the
// source ownership have been checked.
func GrantDebit(authority, source solana.PublicKey, signature solana.Signature) DebitCapability {
	return DebitCapability{authority: authority, source: source, signature: signature}
}

func (c DebitCapability) Authority() solana.PublicKey { return c.authority }
func (c DebitCapability) Source() solana.PublicKey    { return c.source }
func (c DebitCapability) Signature() solana.Signature { return c.signature }

func (c DebitCapability) Permits(address solana.PublicKey) bool {
	if c.authority.IsZero() || c.source.IsZero() || c.signature.IsZero() {
		return false
	}
	return c.source.Equals(address)
}
