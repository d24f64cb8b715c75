package adapters

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes the engine cares about.
const (
	sqlstateUniqueViolation  = "23505"
	sqlstateSerializationErr = "40001"
	sqlstateDeadlockDetected = "40P01"
	sqlstateLockNotAvailable = "55P03"
)

// UniqueViolation reports whether err is a unique-constraint violation and,
// if so, returns the name of the violated constraint. It understands both
// pgx (pgconn.PgError) and lib/pq (pq.Error) driver errors, since the
// engine can sit on either stack.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) && pgxErr.Code == sqlstateUniqueViolation {
		return pgxErr.ConstraintName, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == sqlstateUniqueViolation {
		return pqErr.Constraint, true
	}

	return "", false
}

// IsConcurrencyFailure reports whether err is a transient store-level
// concurrency failure: a serialization failure, a deadlock broken by the
// store, or a lock that could not be acquired in time. These are always
// safe to retry.
func IsConcurrencyFailure(err error) bool {
	var code string

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		code = pgxErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code = string(pqErr.Code)
	}

	switch code {
	case sqlstateSerializationErr, sqlstateDeadlockDetected, sqlstateLockNotAvailable:
		return true
	default:
		return false
	}
}
