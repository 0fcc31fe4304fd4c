package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"tokentransfer/internal/domain"
	"tokentransfer/internal/util"
)

type Service interface {
	// Transfer runs one signed instruction to completion. The returned error
	// is always a *domain.TransferError.
	Transfer(ctx context.Context, signed domain.SignedInstruction) (*Receipt, error)
	// TransferFromInbox is Transfer for a message delivered by a broker. The
	// inbound ref is recorded in the same batch; duplicate is true when that
	// ref was already committed and nothing was done.
	TransferFromInbox(ctx context.Context, ref domain.InboundRef, signed domain.SignedInstruction) (receipt *Receipt, duplicate bool, err error)
	RegisterMint(ctx context.Context, genesis MintGenesis) (*domain.Mint, *domain.HoldingAccount, error)
	Holding(ctx context.Context, owner, mint solana.PublicKey) (*Holding, error)
	GetTransfer(ctx context.Context, transferID string) (*domain.TransferEvent, error)
}

type transferService struct {
	ledger   Ledger
	deriver  *domain.AddressDeriver
	resolver *Resolver
	guard    *Guard
	executor *Executor
	emitter  *Emitter
	funder   Funder
	logger   *zap.Logger
}

func NewTransferService(
	ledger Ledger,
	deriver *domain.AddressDeriver,
	verifier SignatureVerifier,
	funder Funder,
	logger *zap.Logger,
) Service {
	return &transferService{
		ledger:   ledger,
		deriver:  deriver,
		resolver: NewResolver(deriver),
		guard:    NewGuard(verifier),
		executor: NewExecutor(funder, logger),
		emitter:  NewEmitter(),
		funder:   funder,
		logger:   logger,
	}
}

func (s *transferService) Transfer(ctx context.Context, signed domain.SignedInstruction) (*Receipt, error) {
	receipt, _, err := s.run(ctx, nil, signed)
	return receipt, err
}

func (s *transferService) TransferFromInbox(ctx context.Context, ref domain.InboundRef, signed domain.SignedInstruction) (*Receipt, bool, error) {
	return s.run(ctx, &ref, signed)
}

func (s *transferService) run(ctx context.Context, ref *domain.InboundRef, signed domain.SignedInstruction) (*Receipt, bool, error) {
	transferID := util.GenerateUUID()
	in := signed.Instruction
	log := s.logger.With(
		zap.String("transfer_id", transferID),
		zap.String("mint", in.Mint.String()),
		zap.String("from", in.SourceOwner.String()),
		zap.String("to", in.DestinationOwner.String()),
		zap.Uint64("amount", in.Amount),
	)
	if ref != nil {
		log = log.With(zap.String("inbound_ref", ref.String()))
	}
	log.Debug("Transfer stage", zap.String("stage", string(StageRequested)))

	batch, err := s.ledger.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin ledger batch", zap.Error(err))
		return nil, false, report("begin batch", err)
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered panic inside transfer batch, rolling back", zap.Any("panic", r))
			_ = batch.Rollback()
			panic(r)
		}
	}()

	if ref != nil {
		if err := batch.RecordInbound(ctx, *ref, transferID); err != nil {
			s.rollback(log, batch)
			if errors.Is(err, domain.ErrAlreadyProcessed) {
				log.Info("Inbound transfer instruction already processed")
				return nil, true, nil
			}
			log.Error("Failed to record inbound message", zap.Error(err))
			return nil, false, report("record inbound", err)
		}
	}

	receipt, err := s.transferTx(ctx, batch, log, transferID, signed)
	if err != nil {
		s.rollback(log, batch)
		err = report("transfer", err)
		code, _ := domain.CodeOf(err)
		if code == domain.CodeLedgerFailure {
			log.Error("Transfer aborted", zap.String("stage", string(StageAborted)), zap.Error(err))
		} else {
			log.Warn("Transfer rejected", zap.String("stage", string(StageAborted)), zap.String("code", string(code)), zap.Error(err))
		}
		return nil, false, err
	}

	if err := batch.Commit(); err != nil {
		log.Error("Failed to commit transfer batch", zap.String("stage", string(StageAborted)), zap.Error(err))
		return nil, false, domain.NewTransferError(domain.CodeLedgerFailure, "commit", err)
	}

	receipt.Stage = StageCommitted
	log.Info("Transfer committed",
		zap.Bool("destination_created", receipt.DestinationCreated),
		zap.Uint64("source_balance", receipt.Source.Balance),
		zap.Uint64("destination_balance", receipt.Destination.Balance))
	return receipt, false, nil
}

func (s *transferService) transferTx(ctx context.Context, batch Batch, log *zap.Logger, transferID string, signed domain.SignedInstruction) (*Receipt, error) {
	in := signed.Instruction

	log.Debug("Transfer stage", zap.String("stage", string(StageValidating)))
	res, err := s.resolver.Resolve(ctx, batch, in)
	if err != nil {
		return nil, err
	}
	capability, err := s.guard.Authorize(signed, res)
	if err != nil {
		return nil, err
	}
	if err := ValidateBalance(in.Amount, res.Source); err != nil {
		return nil, err
	}

	log.Debug("Transfer stage", zap.String("stage", string(StageExecuting)))
	created := res.CreateDestination
	if err := s.executor.Execute(ctx, batch, capability, res, in); err != nil {
		return nil, err
	}
	event, err := s.emitter.Emit(ctx, batch, transferID, res, in)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		TransferID:         transferID,
		Mint:               res.Mint,
		Event:              event,
		Source:             res.Source,
		Destination:        res.Destination,
		DestinationCreated: created,
		Stage:              StageExecuting,
	}, nil
}

func (s *transferService) rollback(log *zap.Logger, batch Batch) {
	if err := batch.Rollback(); err != nil {
		log.Error("Failed to roll back ledger batch", zap.Error(err))
	}
}

func (s *transferService) RegisterMint(ctx context.Context, genesis MintGenesis) (*domain.Mint, *domain.HoldingAccount, error) {
	if genesis.Mint.IsZero() {
		return nil, nil, domain.NewTransferError(domain.CodeInvalidMint, "register mint", errors.New("mint is empty"))
	}
	if genesis.Authority.IsZero() {
		return nil, nil, fmt.Errorf("%w: mint authority is empty", domain.ErrInvalidRequest)
	}
	log := s.logger.With(zap.String("mint", genesis.Mint.String()), zap.String("authority", genesis.Authority.String()))

	batch, err := s.ledger.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin ledger batch for mint genesis", zap.Error(err))
		return nil, nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered panic during mint genesis, rolling back", zap.Any("panic", r))
			_ = batch.Rollback()
			panic(r)
		}
	}()

	mint, account, err := s.registerMintTx(ctx, batch, genesis)
	if err != nil {
		s.rollback(log, batch)
		if errors.Is(err, domain.ErrMintAlreadyExists) {
			log.Warn("Mint already registered")
		} else {
			log.Error("Failed to register mint", zap.Error(err))
		}
		return nil, nil, err
	}
	if err := batch.Commit(); err != nil {
		log.Error("Failed to commit mint genesis", zap.Error(err))
		return nil, nil, fmt.Errorf("commit mint genesis: %w", err)
	}

	log.Info("Mint registered",
		zap.Uint8("decimals", mint.Decimals),
		zap.Uint64("supply", account.Balance),
		zap.String("authority_account", account.Address.String()))
	return mint, account, nil
}

func (s *transferService) registerMintTx(ctx context.Context, batch Batch, genesis MintGenesis) (*domain.Mint, *domain.HoldingAccount, error) {
	_, err := batch.Mint(ctx, genesis.Mint)
	switch {
	case err == nil:
		return nil, nil, fmt.Errorf("mint %s: %w", genesis.Mint, domain.ErrMintAlreadyExists)
	case !errors.Is(err, domain.ErrMintNotFound):
		return nil, nil, fmt.Errorf("look up mint %s: %w", genesis.Mint, err)
	}

	now := time.Now().UTC()
	mint := &domain.Mint{
		Address:   genesis.Mint,
		Authority: genesis.Authority,
		Decimals:  genesis.Decimals,
		CreatedAt: now,
	}
	if err := batch.CreateMint(ctx, mint); err != nil {
		return nil, nil, fmt.Errorf("create mint %s: %w", genesis.Mint, err)
	}

	address := s.deriver.HoldingAddress(genesis.Authority, genesis.Mint)
	deposit, err := s.funder.Fund(ctx, genesis.Authority, address)
	if err != nil {
		return nil, nil, fmt.Errorf("fund %s: %w", address, err)
	}
	account := &domain.HoldingAccount{
		Address:     address,
		Owner:       genesis.Authority,
		Mint:        genesis.Mint,
		Balance:     genesis.Supply,
		RentDeposit: deposit,
		FundedBy:    genesis.Authority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := batch.CreateAccount(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("create holding account %s: %w", address, err)
	}
	return mint, account, nil
}

func (s *transferService) Holding(ctx context.Context, owner, mint solana.PublicKey) (*Holding, error) {
	m, err := s.ledger.Mint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get mint %s: %w", mint, err)
	}
	h := &Holding{
		Address: s.deriver.HoldingAddress(owner, mint),
		Owner:   owner,
		Mint:    m,
	}
	account, err := s.ledger.HoldingAccount(ctx, h.Address)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		s.logger.Warn("Failed to read holding account", zap.String("address", h.Address.String()), zap.Error(err))
		return nil, fmt.Errorf("get holding account %s: %w", h.Address, err)
	}
	h.Account = account
	return h, nil
}

func (s *transferService) GetTransfer(ctx context.Context, transferID string) (*domain.TransferEvent, error) {
	if !util.IsUUID(transferID) {
		return nil, fmt.Errorf("get transfer %q: %w", transferID, domain.ErrTransferNotFound)
	}
	event, err := s.ledger.Transfer(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("get transfer %s: %w", transferID, err)
	}
	return event, nil
}
