package circulation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pkoernig/borrowing-engine-go/circulation"
)

func Test_Fine_IsSettled_FollowsThePaidFlag(t *testing.T) {
	paidAt := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

	open := circulation.Fine{Amount: circulation.NewMoney(500, circulation.USD)}
	settled := circulation.Fine{Amount: circulation.NewMoney(500, circulation.USD), Paid: true, PaidAt: &paidAt}

	assert.False(t, open.IsSettled())
	assert.True(t, settled.IsSettled())
}
