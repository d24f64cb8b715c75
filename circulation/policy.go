package circulation

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultBorrowPeriodDays    = 14
	defaultFineRateCentsPerDay = 100 // $1.00 per day overdue
)

var (
	ErrInvalidBorrowPeriod = errors.New("borrow period must be positive")
	ErrNegativeFineRate    = errors.New("fine rate must not be negative")
)

// Policy holds the circulation policy constants consumed by the engine.
type Policy struct {
	BorrowPeriodDays int
	FineRatePerDay   Money
}

// DefaultPolicy returns the standard policy: a two-week borrowing period
// and a fine rate of $1.00 per day overdue.
func DefaultPolicy() Policy {
	return Policy{
		BorrowPeriodDays: defaultBorrowPeriodDays,
		FineRatePerDay:   NewMoney(defaultFineRateCentsPerDay, USD),
	}
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	if p.BorrowPeriodDays <= 0 {
		return ErrInvalidBorrowPeriod
	}

	if p.FineRatePerDay.Amount < 0 {
		return ErrNegativeFineRate
	}

	return nil
}

// DueDateFor derives the default due date for a checkout happening at the
// given instant. The result is a calendar date, truncated to midnight UTC.
func (p Policy) DueDateFor(borrowedAt time.Time) time.Time {
	return DateOf(borrowedAt.AddDate(0, 0, p.BorrowPeriodDays))
}

// CalculateFine computes the fine for the given number of days overdue.
// Zero or negative days yield a zero amount.
func (p Policy) CalculateFine(daysOverdue int) Money {
	if daysOverdue <= 0 {
		return NewMoney(0, p.FineRatePerDay.Currency)
	}

	return p.FineRatePerDay.Times(int64(daysOverdue))
}

// FineReason builds the human-readable reason string stored on automatic
// fines, e.g. "Overdue by 5 days".
func FineReason(daysOverdue int) string {
	if daysOverdue == 1 {
		return "Overdue by 1 day"
	}

	return fmt.Sprintf("Overdue by %d days", daysOverdue)
}
