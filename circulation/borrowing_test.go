package circulation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pkoernig/borrowing-engine-go/circulation"
)

func Test_Borrowing_Status_ResolvesReturnedFirst(t *testing.T) {
	// arrange
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	returnedAt := now.Add(-time.Hour)

	// Returned AND past due: returned must win the priority order.
	borrowing := circulation.Borrowing{
		ID:         uuid.New(),
		BorrowedAt: now.AddDate(0, 0, -30),
		DueDate:    now.AddDate(0, 0, -10),
		ReturnedAt: &returnedAt,
	}

	// act + assert
	assert.Equal(t, circulation.BorrowingReturned, borrowing.Status(now))
	assert.False(t, borrowing.IsOverdue(now))
	assert.Equal(t, 0, borrowing.DaysOverdue(now))
}

func Test_Borrowing_Status_Overdue_WhenOpenAndPastDue(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	borrowing := circulation.Borrowing{
		ID:         uuid.New(),
		BorrowedAt: now.AddDate(0, 0, -19),
		DueDate:    now.AddDate(0, 0, -5),
	}

	assert.Equal(t, circulation.BorrowingOverdue, borrowing.Status(now))
	assert.True(t, borrowing.IsOverdue(now))
	assert.Equal(t, 5, borrowing.DaysOverdue(now))
}

func Test_Borrowing_Status_Active_WhenOpenAndNotDueYet(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	borrowing := circulation.Borrowing{
		ID:         uuid.New(),
		BorrowedAt: now.AddDate(0, 0, -12),
		DueDate:    now.AddDate(0, 0, 2),
	}

	assert.Equal(t, circulation.BorrowingActive, borrowing.Status(now))
	assert.Equal(t, 0, borrowing.DaysOverdue(now))

	daysUntilDue, open := borrowing.DaysUntilDue(now)
	assert.True(t, open)
	assert.Equal(t, 2, daysUntilDue)
}

func Test_Borrowing_DaysOverdue_CountsCalendarDays_NotElapsedHours(t *testing.T) {
	// Due late in the evening, checked shortly after midnight: that is
	// one calendar day overdue even though less than 24 hours passed.
	dueDate := time.Date(2024, 3, 19, 23, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 20, 0, 30, 0, 0, time.UTC)

	borrowing := circulation.Borrowing{
		ID:      uuid.New(),
		DueDate: dueDate,
	}

	assert.Equal(t, 1, borrowing.DaysOverdue(now))
	assert.True(t, borrowing.IsOverdue(now))
}

func Test_Borrowing_DueToday_IsNotOverdue(t *testing.T) {
	now := time.Date(2024, 3, 20, 18, 0, 0, 0, time.UTC)

	borrowing := circulation.Borrowing{
		ID:      uuid.New(),
		DueDate: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC),
	}

	assert.False(t, borrowing.IsOverdue(now))
	assert.Equal(t, circulation.BorrowingActive, borrowing.Status(now))
}

func Test_Borrowing_DaysUntilDue_NotMeaningfulOnceReturned(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	returnedAt := now.Add(-time.Hour)

	borrowing := circulation.Borrowing{
		ID:         uuid.New(),
		DueDate:    now.AddDate(0, 0, 3),
		ReturnedAt: &returnedAt,
	}

	_, open := borrowing.DaysUntilDue(now)
	assert.False(t, open)
}
