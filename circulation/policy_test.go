package circulation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pkoernig/borrowing-engine-go/circulation"
)

func Test_DefaultPolicy_TwoWeeksAndOneDollarPerDay(t *testing.T) {
	policy := circulation.DefaultPolicy()

	assert.NoError(t, policy.Validate())
	assert.Equal(t, 14, policy.BorrowPeriodDays)
	assert.Equal(t, circulation.NewMoney(100, circulation.USD), policy.FineRatePerDay)
}

func Test_CalculateFine_ZeroOrNegativeDays_YieldsZeroAmount(t *testing.T) {
	policy := circulation.DefaultPolicy()

	assert.True(t, policy.CalculateFine(0).IsZero())
	assert.True(t, policy.CalculateFine(-3).IsZero())
}

func Test_CalculateFine_MultipliesDaysByRate(t *testing.T) {
	policy := circulation.DefaultPolicy()

	fine := policy.CalculateFine(5)

	assert.Equal(t, int64(500), fine.Amount)
	assert.Equal(t, circulation.USD, fine.Currency)
	assert.Equal(t, "$5.00", fine.String())
}

func Test_CalculateFine_RespectsConfiguredRate(t *testing.T) {
	policy := circulation.Policy{
		BorrowPeriodDays: 7,
		FineRatePerDay:   circulation.NewMoney(25, circulation.USD),
	}

	assert.NoError(t, policy.Validate())
	assert.Equal(t, int64(75), policy.CalculateFine(3).Amount)
}

func Test_Policy_Validate_RejectsBadValues(t *testing.T) {
	noPeriod := circulation.Policy{BorrowPeriodDays: 0, FineRatePerDay: circulation.NewMoney(100, circulation.USD)}
	assert.ErrorIs(t, noPeriod.Validate(), circulation.ErrInvalidBorrowPeriod)

	negativeRate := circulation.Policy{BorrowPeriodDays: 14, FineRatePerDay: circulation.NewMoney(-1, circulation.USD)}
	assert.ErrorIs(t, negativeRate.Validate(), circulation.ErrNegativeFineRate)
}

func Test_Policy_DueDateFor_AddsBorrowPeriodAsCalendarDate(t *testing.T) {
	policy := circulation.DefaultPolicy()
	borrowedAt := time.Date(2024, 3, 6, 10, 30, 0, 0, time.UTC)

	dueDate := policy.DueDateFor(borrowedAt)

	assert.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), dueDate)
}

func Test_FineReason_MentionsDayCount_WithSingularForm(t *testing.T) {
	assert.Equal(t, "Overdue by 1 day", circulation.FineReason(1))
	assert.Equal(t, "Overdue by 5 days", circulation.FineReason(5))
}
