package database

import (
	"context"
	"errors"
	"strings"

	"course-ledger/internal/logging"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// Transact runs fn in a single transaction. A transient concurrency failure
// (serialization failure or deadlock) is retried once; any other error, or a
// second failure, is returned as-is. fn must only use the tx it is given.
func Transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	if err == nil || !IsRetryable(err) {
		return err
	}

	logging.FromCtx(ctx).Warn("transaction conflict, retrying once", "error", err)
	return db.WithContext(ctx).Transaction(fn)
}

func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// IsUniqueViolation recognizes duplicate-key errors from postgres and sqlite,
// translated or not.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
