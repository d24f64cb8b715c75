package enginewrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine"
	"github.com/pkoernig/borrowing-engine-go/testutil/circulation/config"
)

// Adapter type constants, selected through the ADAPTER_TYPE env variable.
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper abstracts over the different database adapter types so the same
// test suite runs against all of them.
type Wrapper interface {
	GetEngine() *postgresengine.Engine
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	engine *postgresengine.Engine
}

func (w *PGXPoolWrapper) GetEngine() *postgresengine.Engine {
	return w.engine
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db     *sql.DB
	engine *postgresengine.Engine
}

func (w *SQLDBWrapper) GetEngine() *postgresengine.Engine {
	return w.engine
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db     *sqlx.DB
	engine *postgresengine.Engine
}

func (w *SQLXWrapper) GetEngine() *postgresengine.Engine {
	return w.engine
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the wrapper matching the ADAPTER_TYPE
// env variable, ensures the schema exists, and returns it.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	adapterTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	var wrapper Wrapper

	switch adapterTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		engine, err := postgresengine.NewEngineFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating engine")

		wrapper = &PGXPoolWrapper{pool: connPool, engine: engine}

	case typeSQLDB:
		db := config.PostgresSQLDBConfig()

		engine, err := postgresengine.NewEngineFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating engine")

		wrapper = &SQLDBWrapper{db: db, engine: engine}

	case typeSQLXDB:
		db := config.PostgresSQLXConfig()

		engine, err := postgresengine.NewEngineFromSQLX(db, options...)
		assert.NoError(t, err, "error creating engine")

		wrapper = &SQLXWrapper{db: db, engine: engine}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv))
	}

	schemaErr := wrapper.GetEngine().CreateSchema(context.Background())
	assert.NoError(t, schemaErr, "error creating schema in test setup")

	return wrapper
}

// CleanUp empties all circulation tables for the given wrapper. Fines and
// borrowings go first so foreign keys never block the truncation.
func CleanUp(t testing.TB, wrapper Wrapper) {
	statements := []string{
		"TRUNCATE TABLE fines, borrowings, accounts, members, books, circulation_audit RESTART IDENTITY CASCADE",
	}

	for _, statement := range statements {
		execErr := Exec(wrapper, statement)
		assert.NoError(t, execErr, "error cleaning up the circulation tables")
	}
}

// Exec runs a raw statement against the wrapper's underlying connection.
func Exec(wrapper Wrapper, query string) error {
	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err := w.pool.Exec(context.Background(), query)
		return err

	case *SQLDBWrapper:
		_, err := w.db.Exec(query)
		return err

	case *SQLXWrapper:
		_, err := w.db.Exec(query)
		return err

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}
}

// QueryScalarInt runs a single-value query against the wrapper's underlying
// connection and scans the result into an int.
func QueryScalarInt(t testing.TB, wrapper Wrapper, query string) int {
	var value int
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		row := w.pool.QueryRow(context.Background(), query)
		err = row.Scan(&value)

	case *SQLDBWrapper:
		row := w.db.QueryRow(query)
		err = row.Scan(&value)

	case *SQLXWrapper:
		row := w.db.QueryRow(query)
		err = row.Scan(&value)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	assert.NoError(t, err, "error querying scalar value")

	return value
}
