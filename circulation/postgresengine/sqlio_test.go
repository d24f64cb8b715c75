package postgresengine

import (
	"context"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine/internal/adapters"
)

// stubRows yields no rows and reports a configurable iteration error, the
// way pgx surfaces deadlocks and lock timeouts on locked reads.
type stubRows struct {
	iterationErr error
}

func (s *stubRows) Next() bool          { return false }
func (s *stubRows) Scan(_ ...any) error { return nil }
func (s *stubRows) Err() error          { return s.iterationErr }
func (s *stubRows) Close() error        { return nil }

type stubQueryer struct {
	rows     adapters.DBRows
	queryErr error
}

func (s *stubQueryer) Query(_ context.Context, _ string) (adapters.DBRows, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}

	return s.rows, nil
}

func memberByIDStmt() *goqu.SelectDataset {
	return builder().From(tableMembers).Select(memberColumns()...)
}

func Test_QuerySingle_ReportsConflictWhenDeadlockSurfacesDuringIteration(t *testing.T) {
	// setup
	engine := &Engine{}
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	runner := &stubQueryer{rows: &stubRows{iterationErr: deadlock}}

	// act
	_, err := querySingle(
		engine, context.Background(), runner, memberByIDStmt(),
		scanMember, actionLockMember, circulation.ErrMemberNotFound,
	)

	// assert
	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
	assert.NotErrorIs(t, err, circulation.ErrMemberNotFound)
}

func Test_QuerySingle_ReportsNotFoundWhenNoRowMatches(t *testing.T) {
	// setup
	engine := &Engine{}
	runner := &stubQueryer{rows: &stubRows{}}

	// act
	_, err := querySingle(
		engine, context.Background(), runner, memberByIDStmt(),
		scanMember, actionLockMember, circulation.ErrMemberNotFound,
	)

	// assert
	assert.ErrorIs(t, err, circulation.ErrMemberNotFound)
}

func Test_QuerySingle_ReportsConflictWhenLockTimeoutFailsTheQuery(t *testing.T) {
	// setup
	engine := &Engine{}
	lockTimeout := &pgconn.PgError{Code: "55P03", Message: "lock not available"}
	runner := &stubQueryer{queryErr: lockTimeout}

	// act
	_, err := querySingle(
		engine, context.Background(), runner, memberByIDStmt(),
		scanMember, actionLockMember, circulation.ErrMemberNotFound,
	)

	// assert
	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
	assert.NotErrorIs(t, err, circulation.ErrMemberNotFound)
}

func Test_QueryList_ReportsConflictWhenDeadlockSurfacesDuringIteration(t *testing.T) {
	// setup
	engine := &Engine{}
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	runner := &stubQueryer{rows: &stubRows{iterationErr: deadlock}}

	// act
	_, err := queryList(
		engine, context.Background(), runner, memberByIDStmt(),
		scanMember, actionQueryMember,
	)

	// assert
	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
}
