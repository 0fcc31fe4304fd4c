// Package repository holds helpers shared by the Postgres repositories.
package repository

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     pq.ErrorCode = "23505"
	pgCheckViolation      pq.ErrorCode = "23514"
	pgForeignKeyViolation pq.ErrorCode = "23503"
)

func IsUniqueViolation(err error) bool     { return hasCode(err, pgUniqueViolation) }
func IsCheckViolation(err error) bool      { return hasCode(err, pgCheckViolation) }
func IsForeignKeyViolation(err error) bool { return hasCode(err, pgForeignKeyViolation) }

func hasCode(err error, code pq.ErrorCode) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Uint64Arg renders v for a $n::numeric parameter. database/sql refuses
// uint64 values with the high bit set.
func Uint64Arg(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// ParseUint64 reads a NUMERIC(20,0) column scanned as text.
func ParseUint64(column, raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", column, err)
	}
	return v, nil
}

// ParseKey reads a base58 key column.
func ParseKey(column, raw string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("column %s: %w", column, err)
	}
	return key, nil
}

func KeyStrings(keys []solana.PublicKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
