// Package postgresengine implements the circulation borrowing engine on
// PostgreSQL.
//
// Every operation runs in exactly one database transaction. Rows are locked
// with SELECT ... FOR UPDATE in a fixed order (member before book, borrowing
// before book) and shared counters move only through guarded
// compare-and-update statements whose affected-row count is checked. A
// guarded statement that affects zero rows means a concurrent transaction
// won the race; checkout reports this as circulation.ErrConcurrencyConflict
// so callers can retry, typically via circulation.RetryOnConflict.
//
// The partial unique index on open borrowings is the authority for the
// one-open-borrowing-per-member-and-book rule. The engine's locked
// pre-checks only produce friendlier errors earlier; correctness never
// depends on them.
//
// The engine works with a pgxpool.Pool, a sql.DB or a sqlx.DB through the
// constructors NewEngineFromPGXPool, NewEngineFromSQLDB and NewEngineFromSQLX.
package postgresengine
