// Package signature checks ed25519 signatures made by solana-style identities.
package signature

import (
	"github.com/gagliardetto/solana-go"
)

type Ed25519Verifier struct{}

func NewEd25519Verifier() Ed25519Verifier {
	return Ed25519Verifier{}
}

// HasSigned reports whether signature is identity's signature over message.
func (Ed25519Verifier) HasSigned(identity solana.PublicKey, message []byte, signature solana.Signature) bool {
	if identity.IsZero() {
		return false
	}
	return identity.Verify(message, signature)
}

// Sign is the counterpart of HasSigned.
func Sign(key solana.PrivateKey, message []byte) (solana.Signature, error) {
	return key.Sign(message)
}
