// Package overduewatch runs a scheduled scan for overdue borrowings and
// reports them through the circulation observability interfaces. It only
// reads; fines are created by the engine when the book actually comes back.
package overduewatch

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/pkoernig/borrowing-engine-go/circulation"
)

const (
	defaultSchedule = "0 6 * * *"

	metricOverdueBorrowings = "circulation_overdue_borrowings"
	metricScanErrors        = "circulation_overdue_scan_errors_total"

	logMsgScanStarted  = "overdue scan started"
	logMsgScanFinished = "overdue scan finished"
	logMsgScanFailed   = "overdue scan failed"
	logMsgOverdueFound = "overdue borrowing"

	logAttrError       = "error"
	logAttrCount       = "count"
	logAttrBorrowingID = "borrowing_id"
	logAttrMemberID    = "member_id"
	logAttrBookID      = "book_id"
	logAttrDueDate     = "due_date"
	logAttrDaysOverdue = "days_overdue"
)

var (
	ErrNilLister       = errors.New("nil borrowing lister supplied")
	ErrInvalidSchedule = errors.New("invalid cron schedule")
)

// BorrowingLister is the slice of the engine the watcher needs.
type BorrowingLister interface {
	OverdueBorrowings(ctx context.Context) ([]circulation.Borrowing, error)
}

// Watcher periodically lists overdue borrowings and logs each one.
type Watcher struct {
	lister           BorrowingLister
	clock            circulation.Clock
	schedule         string
	logger           circulation.Logger
	metricsCollector circulation.MetricsCollector
	cron             *cron.Cron
}

// Option configures optional properties of a Watcher.
type Option func(*Watcher) error

// WithSchedule overrides the default daily schedule with a cron expression.
func WithSchedule(schedule string) Option {
	return func(w *Watcher) error {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return errors.Join(ErrInvalidSchedule, err)
		}

		w.schedule = schedule

		return nil
	}
}

// WithLogger attaches a logger for scan results.
func WithLogger(logger circulation.Logger) Option {
	return func(w *Watcher) error {
		w.logger = logger
		return nil
	}
}

// WithMetrics attaches a metrics collector for scan gauges and error counts.
func WithMetrics(collector circulation.MetricsCollector) Option {
	return func(w *Watcher) error {
		w.metricsCollector = collector
		return nil
	}
}

// WithClock overrides the clock used to compute days overdue.
func WithClock(clock circulation.Clock) Option {
	return func(w *Watcher) error {
		if clock == nil {
			return circulation.ErrNilClock
		}

		w.clock = clock

		return nil
	}
}

// NewWatcher creates a watcher over the given lister with optional configuration.
func NewWatcher(lister BorrowingLister, options ...Option) (*Watcher, error) {
	if lister == nil {
		return nil, ErrNilLister
	}

	watcher := &Watcher{
		lister:   lister,
		clock:    circulation.SystemClock(),
		schedule: defaultSchedule,
	}

	for _, option := range options {
		if err := option(watcher); err != nil {
			return nil, err
		}
	}

	return watcher, nil
}

// Start schedules the scan and begins running it. The returned error only
// covers schedule registration; scan failures are logged and counted.
func (w *Watcher) Start(ctx context.Context) error {
	w.cron = cron.New()

	_, err := w.cron.AddFunc(w.schedule, func() {
		w.Scan(ctx)
	})
	if err != nil {
		return errors.Join(ErrInvalidSchedule, err)
	}

	w.cron.Start()

	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (w *Watcher) Stop() {
	if w.cron == nil {
		return
	}

	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
}

// Scan runs one sweep immediately and returns the overdue borrowings it
// found. Start calls it on schedule; callers can also invoke it directly.
func (w *Watcher) Scan(ctx context.Context) []circulation.Borrowing {
	w.logDebug(logMsgScanStarted)

	borrowings, err := w.lister.OverdueBorrowings(ctx)
	if err != nil {
		w.logError(logMsgScanFailed, err)
		w.incrementCounter(metricScanErrors)

		return nil
	}

	now := w.clock.Now()

	for _, borrowing := range borrowings {
		w.logWarn(logMsgOverdueFound,
			logAttrBorrowingID, borrowing.ID.String(),
			logAttrMemberID, borrowing.MemberID.String(),
			logAttrBookID, borrowing.BookID.String(),
			logAttrDueDate, borrowing.DueDate,
			logAttrDaysOverdue, borrowing.DaysOverdue(now))
	}

	w.recordValue(metricOverdueBorrowings, float64(len(borrowings)))
	w.logInfo(logMsgScanFinished, logAttrCount, len(borrowings))

	return borrowings
}

func (w *Watcher) logDebug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}

func (w *Watcher) logInfo(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *Watcher) logWarn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

func (w *Watcher) logError(msg string, err error, args ...any) {
	if w.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		w.logger.Error(msg, allArgs...)
	}
}

func (w *Watcher) incrementCounter(metric string) {
	if w.metricsCollector != nil {
		w.metricsCollector.IncrementCounter(metric, nil)
	}
}

func (w *Watcher) recordValue(metric string, value float64) {
	if w.metricsCollector != nil {
		w.metricsCollector.RecordValue(metric, value, nil)
	}
}
