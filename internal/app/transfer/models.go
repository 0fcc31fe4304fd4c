package transfer

import (
	"github.com/gagliardetto/solana-go"

	"tokentransfer/internal/domain"
)

// Stage is the lifecycle position of a single transfer request. Stages are
// only logged, never persisted.
type Stage string

const (
	StageRequested  Stage = "REQUESTED"
	StageValidating Stage = "VALIDATING"
	StageExecuting  Stage = "EXECUTING"
	StageCommitted  Stage = "COMMITTED"
	StageAborted    Stage = "ABORTED"
)

// Resolution is what the resolver learned about the two accounts of a
// request. Source is nil when no account exists at SourceAddress.
type Resolution struct {
	Mint               *domain.Mint
	SourceAddress      solana.PublicKey
	DestinationAddress solana.PublicKey
	Source             *domain.HoldingAccount
	Destination        *domain.HoldingAccount
	CreateDestination  bool
}

// SelfTransfer reports whether source and destination are the same account.
func (r *Resolution) SelfTransfer() bool {
	return r.SourceAddress.Equals(r.DestinationAddress)
}

// Receipt acknowledges a committed transfer. Source and Destination hold the
// post-transfer state.
type Receipt struct {
	TransferID         string
	Mint               *domain.Mint
	Event              *domain.TransferEvent
	Source             *domain.HoldingAccount
	Destination        *domain.HoldingAccount
	DestinationCreated bool
	Stage              Stage
}

// MintGenesis registers a new mint and credits its initial supply to the
// mint authority's holding account.
type MintGenesis struct {
	Mint      solana.PublicKey
	Authority solana.PublicKey
	Decimals  uint8
	Supply    uint64
}

// Holding is a read-only view of the canonical holding account for
// (owner, mint). Account is nil when it has not been created yet.
type Holding struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Mint    *domain.Mint
	Account *domain.HoldingAccount
}

func (h *Holding) Exists() bool { return h.Account != nil }

func (h *Holding) Balance() uint64 {
	if h.Account == nil {
		return 0
	}
	return h.Account.Balance
}
