// Package adapters provides database adapter implementations for the PostgreSQL borrowing engine.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, allowing the engine to work seamlessly with any
// supported database connection type.
//
// On top of plain query execution the adapters expose transactions (DBTx),
// since every engine operation runs inside exactly one transaction, and they
// classify driver-specific errors (unique-violation constraint names,
// serialization failures, deadlocks, lock timeouts) into driver-neutral
// facts the engine can act on.
package adapters
