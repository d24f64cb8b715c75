package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Fine represents a monetary penalty attached to exactly one borrowing.
//
// At most one fine per borrowing is created automatically by the Return
// operation. Ad-hoc fines for damage or loss are a separate creation path
// outside the engine.
type Fine struct {
	ID          uuid.UUID
	BorrowingID uuid.UUID
	Amount      Money
	Reason      string
	Paid        bool
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsSettled reports whether the fine has been paid.
func (f Fine) IsSettled() bool {
	return f.Paid
}
