package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/pkoernig/borrowing-engine-go/circulation"
)

const (
	metricOperationDuration    = "circulation_operation_duration"
	metricCheckouts            = "circulation_checkouts_total"
	metricReturns              = "circulation_returns_total"
	metricFinesCreated         = "circulation_fines_created_total"
	metricConcurrencyConflicts = "circulation_concurrency_conflicts_total"
	metricDatabaseErrors       = "circulation_database_errors_total"

	spanNamePrefix    = "circulation."
	spanAttrOperation = "operation"
	spanAttrErrorType = "error_type"

	statusOK       = "ok"
	statusError    = "error"
	statusConflict = "conflict"
)

// logDebug logs at debug level, preferring the contextual logger when configured.
func (e *Engine) logDebug(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

// logInfo logs at info level, preferring the contextual logger when configured.
func (e *Engine) logInfo(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

// logWarn logs at warning level, preferring the contextual logger when configured.
func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (e *Engine) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if e.logger != nil {
		e.logger.Error(msg, allArgs...)
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (e *Engine) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	e.logDebug(ctx, logMsgSQLExecuted+action, logAttrDurationMS, e.toMilliseconds(duration), logAttrQuery, sqlQuery)
}

// logOperation logs operational information at info level.
func (e *Engine) logOperation(ctx context.Context, action string, args ...any) {
	e.logInfo(ctx, logMsgOperation+action, args...)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (e *Engine) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordDuration records an operation duration metric if a collector is configured.
func (e *Engine) recordDuration(ctx context.Context, operation string, status string, duration time.Duration) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := e.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
	} else {
		e.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
	}
}

// incrementCounter increments a counter metric if a collector is configured.
func (e *Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := e.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		e.metricsCollector.IncrementCounter(metric, labels)
	}
}

// recordConflictMetrics records a concurrency conflict for the given operation.
func (e *Engine) recordConflictMetrics(ctx context.Context, operation string) {
	e.incrementCounter(ctx, metricConcurrencyConflicts, map[string]string{
		spanAttrOperation: operation,
	})
}

// recordErrorMetrics records a database error for the given operation.
func (e *Engine) recordErrorMetrics(ctx context.Context, operation string, errorType string) {
	e.incrementCounter(ctx, metricDatabaseErrors, map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	})
}

// startSpan starts a tracing span for an engine operation if a tracing collector is configured.
func (e *Engine) startSpan(ctx context.Context, operation string) (context.Context, SpanContext) {
	if e.tracingCollector == nil {
		return ctx, nil
	}

	return e.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
		spanAttrOperation: operation,
	})
}

// finishSpan finishes a tracing span with the given status if one was started.
func (e *Engine) finishSpan(span SpanContext, status string) {
	if e.tracingCollector == nil || span == nil {
		return
	}

	e.tracingCollector.FinishSpan(span, status, nil)
}

// spanStatusFor maps an operation outcome onto a span status.
func spanStatusFor(err error) string {
	switch {
	case err == nil:
		return statusOK
	case isConflict(err):
		return statusConflict
	default:
		return statusError
	}
}
