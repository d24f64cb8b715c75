package circulation

import (
	"errors"
)

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")

var ErrNilClock = errors.New("nil clock supplied")

// Not-found failures - permanent, a 404-equivalent for the calling layer.
var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrBorrowingNotFound = errors.New("borrowing not found")
	ErrFineNotFound      = errors.New("fine not found")
)

// Precondition failures - permanent given the current state, a 400-equivalent.
var (
	ErrMemberNotActive          = errors.New("member is not active")
	ErrBookNotAvailable         = errors.New("book has no available copies")
	ErrBookAlreadyBorrowed      = errors.New("member already has an open borrowing for this book")
	ErrBorrowingAlreadyReturned = errors.New("borrowing has already been returned")
	ErrFineAlreadyPaid          = errors.New("fine has already been paid")
	ErrEmailAlreadyRegistered   = errors.New("email is already registered")
	ErrMemberHasOpenBorrowings  = errors.New("member still has open borrowings")
	ErrInvalidRestockDelta      = errors.New("restock delta must be positive")
)

// ErrConcurrencyConflict signals that a concurrent transaction won the race,
// no rows were affected and the whole operation was rolled back.
// It is transient - callers may retry, e.g. via RetryOnConflict.
var ErrConcurrencyConflict = errors.New("concurrency conflict, no rows were affected")
