package circulation

import (
	"time"
)

// Clock is the time source consumed by the borrowing engine.
// Every engine operation reads the clock exactly once and reuses that value
// for the remainder of the operation's scope.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock {
	return systemClock{}
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// FixedClock returns a Clock frozen at the given instant, for tests.
func FixedClock(now time.Time) Clock {
	return fixedClock{now: now}
}

// DateOf truncates an instant to its calendar date at midnight UTC.
// Due dates are calendar dates, both in the domain and in storage, so
// every due date passes through here before it is compared or persisted.
func DateOf(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
