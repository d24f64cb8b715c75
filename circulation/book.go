package circulation

import (
	"time"

	"github.com/google/uuid"
)

// BookCondition describes the physical condition of a book.
type BookCondition string

const (
	ConditionExcellent BookCondition = "excellent"
	ConditionGood      BookCondition = "good"
	ConditionFair      BookCondition = "fair"
	ConditionPoor      BookCondition = "poor"
)

// Book represents a title held by the library with a number of physical copies.
//
// Invariant: 0 <= AvailableCopies <= TotalCopies at all times. The engine
// enforces this through guarded compare-and-update writes; the database
// carries matching CHECK constraints as a backstop only.
type Book struct {
	ID              uuid.UUID
	ISBN            string
	Title           string
	Author          string
	Publisher       string
	PublicationYear int
	Description     string
	TotalCopies     int
	AvailableCopies int
	Condition       BookCondition
	Language        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAvailable reports whether at least one copy can be checked out.
func (b Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}
