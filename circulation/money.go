package circulation

import (
	"fmt"
)

// Currency identifies the currency of a monetary amount.
type Currency string

const USD Currency = "USD"

// Money holds a monetary amount in "minor units" (cents).
// Example: $10.50 is stored as Amount 1050.
type Money struct {
	Amount   int64
	Currency Currency
}

// NewMoney creates a new Money instance from minor units.
func NewMoney(amount int64, currency Currency) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// Times scales the amount by a non-negative factor, e.g. days overdue.
func (m Money) Times(factor int64) Money {
	return Money{
		Amount:   m.Amount * factor,
		Currency: m.Currency,
	}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// String formats the amount with two decimal places, "$5.00" for USD.
func (m Money) String() string {
	whole := m.Amount / 100
	cents := m.Amount % 100
	if cents < 0 {
		cents = -cents
	}

	if m.Currency == USD {
		return fmt.Sprintf("$%d.%02d", whole, cents)
	}

	return fmt.Sprintf("%d.%02d %s", whole, cents, m.Currency)
}
