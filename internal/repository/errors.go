package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested row does not exist in the deployment.
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict indicates the ticket left the expected status before the update landed.
	ErrStatusConflict = errors.New("ticket status changed concurrently")

	// ErrConcurrentUpdate indicates a workflow transaction kept losing to concurrent writers.
	ErrConcurrentUpdate = errors.New("workflow set changed concurrently")

	// ErrConstraint indicates a write would break a storage constraint such as
	// the single active workflow index or a ticket foreign key.
	ErrConstraint = errors.New("storage constraint violated")

	errSetVersionMoved = errors.New("workflow set version moved")
)

// Postgres error codes the workflow transaction retries on or maps.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

func retryable(err error) bool {
	if errors.Is(err, errSetVersionMoved) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return errors.Join(ErrConstraint, err)
		}
	}
	return err
}
