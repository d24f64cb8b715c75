package overduewatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/overduewatch"
)

type fakeLister struct {
	borrowings []circulation.Borrowing
	err        error
	calls      int
}

func (f *fakeLister) OverdueBorrowings(_ context.Context) ([]circulation.Borrowing, error) {
	f.calls++
	return f.borrowings, f.err
}

type spyCollector struct {
	mu       sync.Mutex
	counters map[string]int
	values   map[string]float64
}

func newSpyCollector() *spyCollector {
	return &spyCollector{counters: make(map[string]int), values: make(map[string]float64)}
}

func (s *spyCollector) RecordDuration(string, time.Duration, map[string]string) {}

func (s *spyCollector) IncrementCounter(metric string, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[metric]++
}

func (s *spyCollector) RecordValue(metric string, value float64, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[metric] = value
}

func Test_Scan_ReportsOverdueBorrowings(t *testing.T) {
	// setup
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	overdue := circulation.Borrowing{
		ID:         uuid.New(),
		MemberID:   uuid.New(),
		BookID:     uuid.New(),
		BorrowedAt: now.AddDate(0, 0, -20),
		DueDate:    now.AddDate(0, 0, -6),
	}
	lister := &fakeLister{borrowings: []circulation.Borrowing{overdue}}
	collector := newSpyCollector()

	watcher, err := overduewatch.NewWatcher(lister,
		overduewatch.WithClock(circulation.FixedClock(now)),
		overduewatch.WithMetrics(collector))
	assert.NoError(t, err)

	// act
	found := watcher.Scan(context.Background())

	// assert
	assert.Len(t, found, 1)
	assert.Equal(t, overdue.ID, found[0].ID)
	assert.Equal(t, 1, lister.calls)
	assert.Equal(t, float64(1), collector.values["circulation_overdue_borrowings"])
}

func Test_Scan_RecordsZeroGaugeWhenNothingIsOverdue(t *testing.T) {
	// setup
	lister := &fakeLister{}
	collector := newSpyCollector()

	watcher, err := overduewatch.NewWatcher(lister, overduewatch.WithMetrics(collector))
	assert.NoError(t, err)

	// act
	found := watcher.Scan(context.Background())

	// assert
	assert.Empty(t, found)
	assert.Equal(t, float64(0), collector.values["circulation_overdue_borrowings"])
}

func Test_Scan_CountsListerFailures(t *testing.T) {
	// setup
	lister := &fakeLister{err: errors.New("connection refused")}
	collector := newSpyCollector()

	watcher, err := overduewatch.NewWatcher(lister, overduewatch.WithMetrics(collector))
	assert.NoError(t, err)

	// act
	found := watcher.Scan(context.Background())

	// assert
	assert.Nil(t, found)
	assert.Equal(t, 1, collector.counters["circulation_overdue_scan_errors_total"])
}

func Test_NewWatcher_RejectsNilLister(t *testing.T) {
	// act
	watcher, err := overduewatch.NewWatcher(nil)

	// assert
	assert.ErrorIs(t, err, overduewatch.ErrNilLister)
	assert.Nil(t, watcher)
}

func Test_NewWatcher_RejectsInvalidSchedule(t *testing.T) {
	// act
	watcher, err := overduewatch.NewWatcher(&fakeLister{}, overduewatch.WithSchedule("not a schedule"))

	// assert
	assert.ErrorIs(t, err, overduewatch.ErrInvalidSchedule)
	assert.Nil(t, watcher)
}

func Test_StartAndStop_RunWithoutScanningImmediately(t *testing.T) {
	// setup
	lister := &fakeLister{}

	watcher, err := overduewatch.NewWatcher(lister, overduewatch.WithSchedule("0 6 * * *"))
	assert.NoError(t, err)

	// act
	startErr := watcher.Start(context.Background())
	watcher.Stop()

	// assert
	assert.NoError(t, startErr)
	assert.Equal(t, 0, lister.calls)
}
