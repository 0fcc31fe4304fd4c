package accounts_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lib/pq"

	"tokentransfer/internal/domain"
	"tokentransfer/internal/repository"
)

const accountColumns = `address, owner, mint, balance::text, rent_deposit::text, funded_by, created_at, updated_at`

type accountRepository struct{}

func NewAccountRepository() *accountRepository {
	return &accountRepository{}
}

func (r *accountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.HoldingAccount) error {
	query := `
		INSERT INTO holding_accounts (address, owner, mint, balance, rent_deposit, funded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)
	`
	_, err := querier.ExecContext(ctx, query,
		account.Address.String(),
		account.Owner.String(),
		account.Mint.String(),
		repository.Uint64Arg(account.Balance),
		repository.Uint64Arg(account.RentDeposit),
		account.FundedBy.String(),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		switch {
		case repository.IsUniqueViolation(err):
			return fmt.Errorf("account %s: %w", account.Address, domain.ErrAccountAlreadyExists)
		case repository.IsForeignKeyViolation(err):
			return fmt.Errorf("account %s: %w", account.Address, domain.ErrMintNotFound)
		}
		return fmt.Errorf("failed to create holding account %s: %w", account.Address, err)
	}
	return nil
}

func (r *accountRepository) GetAccountTx(ctx context.Context, querier domain.Querier, address solana.PublicKey) (*domain.HoldingAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM holding_accounts WHERE address = $1`
	account, err := scanAccount(querier.QueryRowContext(ctx, query, address.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get holding account %s: %w", address, err)
	}
	return account, nil
}

func (r *accountRepository) LockAccountsTx(ctx context.Context, querier domain.Querier, addresses []solana.PublicKey) (map[solana.PublicKey]*domain.HoldingAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM holding_accounts
		WHERE address = ANY($1)
		ORDER BY address
		FOR UPDATE
	`
	rows, err := querier.QueryContext(ctx, query, pq.Array(repository.KeyStrings(addresses)))
	if err != nil {
		return nil, fmt.Errorf("failed to lock holding accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[solana.PublicKey]*domain.HoldingAccount, len(addresses))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding account: %w", err)
		}
		accounts[account.Address] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locked holding accounts: %w", err)
	}
	return accounts, nil
}

func (r *accountRepository) DebitTx(ctx context.Context, querier domain.Querier, address solana.PublicKey, amount uint64) (uint64, error) {
	query := `
		UPDATE holding_accounts
		SET balance = balance - $1::numeric, updated_at = $2
		WHERE address = $3 AND balance >= $1::numeric
		RETURNING balance::text
	`
	balance, err := r.updateBalance(ctx, querier, query, address, amount)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetAccountTx(ctx, querier, address); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("debit %d from %s: %w", amount, address, domain.ErrBalanceTooLow)
	}
	return balance, err
}

func (r *accountRepository) CreditTx(ctx context.Context, querier domain.Querier, address solana.PublicKey, amount uint64) (uint64, error) {
	query := `
		UPDATE holding_accounts
		SET balance = balance + $1::numeric, updated_at = $2
		WHERE address = $3
		RETURNING balance::text
	`
	balance, err := r.updateBalance(ctx, querier, query, address, amount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, domain.ErrAccountNotFound
	case repository.IsCheckViolation(err):
		return 0, fmt.Errorf("credit %d to %s: %w", amount, address, domain.ErrBalanceOverflow)
	}
	return balance, err
}

func (r *accountRepository) updateBalance(ctx context.Context, querier domain.Querier, query string, address solana.PublicKey, amount uint64) (uint64, error) {
	var raw string
	err := querier.QueryRowContext(ctx, query, repository.Uint64Arg(amount), time.Now().UTC(), address.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsCheckViolation(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to update balance of %s: %w", address, err)
	}
	return repository.ParseUint64("balance", raw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.HoldingAccount, error) {
	var (
		address, owner, mint, fundedBy string
		balance, rentDeposit           string
		account                        domain.HoldingAccount
	)
	if err := row.Scan(&address, &owner, &mint, &balance, &rentDeposit, &fundedBy, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if account.Address, err = repository.ParseKey("address", address); err != nil {
		return nil, err
	}
	if account.Owner, err = repository.ParseKey("owner", owner); err != nil {
		return nil, err
	}
	if account.Mint, err = repository.ParseKey("mint", mint); err != nil {
		return nil, err
	}
	if account.FundedBy, err = repository.ParseKey("funded_by", fundedBy); err != nil {
		return nil, err
	}
	if account.Balance, err = repository.ParseUint64("balance", balance); err != nil {
		return nil, err
	}
	if account.RentDeposit, err = repository.ParseUint64("rent_deposit", rentDeposit); err != nil {
		return nil, err
	}
	return &account, nil
}
