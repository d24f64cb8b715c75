package circulation

import (
	"time"

	"github.com/google/uuid"
)

// BorrowingStatus is the derived state of a borrowing. It is never stored -
// it is computed from ReturnedAt and DueDate against a given "now".
type BorrowingStatus string

const (
	BorrowingActive   BorrowingStatus = "active"
	BorrowingOverdue  BorrowingStatus = "overdue"
	BorrowingReturned BorrowingStatus = "returned"
)

// Borrowing represents one checkout of one book copy by one member.
//
// Invariant: at most one borrowing per (member, book) pair may be open
// (ReturnedAt unset) at any time. The partial unique index on the borrowings
// table is the authority for this; the engine's locked pre-checks are an
// optimization in front of it.
type Borrowing struct {
	ID         uuid.UUID
	MemberID   uuid.UUID
	BookID     uuid.UUID
	BorrowedAt time.Time
	DueDate    time.Time
	ReturnedAt *time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen reports whether the borrowing has not been returned yet.
func (b Borrowing) IsOpen() bool {
	return b.ReturnedAt == nil
}

// IsOverdue reports whether the borrowing is open and past its due date.
func (b Borrowing) IsOverdue(now time.Time) bool {
	if b.ReturnedAt != nil {
		return false
	}

	return daysBetween(b.DueDate, now) > 0
}

// DaysOverdue returns max(today - due date, 0) in whole calendar days
// while the borrowing is open, and 0 once it has been returned.
func (b Borrowing) DaysOverdue(now time.Time) int {
	if b.ReturnedAt != nil {
		return 0
	}

	days := daysBetween(b.DueDate, now)
	if days < 0 {
		return 0
	}

	return days
}

// DaysUntilDue returns the whole calendar days until the due date.
// The second return value is false once the borrowing has been returned.
func (b Borrowing) DaysUntilDue(now time.Time) (int, bool) {
	if b.ReturnedAt != nil {
		return 0, false
	}

	return daysBetween(now, b.DueDate), true
}

// Status resolves the derived status, checked in priority order:
// returned, then overdue, then active.
func (b Borrowing) Status(now time.Time) BorrowingStatus {
	if b.ReturnedAt != nil {
		return BorrowingReturned
	}

	if b.IsOverdue(now) {
		return BorrowingOverdue
	}

	return BorrowingActive
}

// daysBetween counts whole calendar days from one instant's date to
// another's, ignoring the time-of-day components.
func daysBetween(from time.Time, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
