package postgresengine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine/internal/adapters"
)

const (
	tableMembers    = "members"
	tableAccounts   = "accounts"
	tableBooks      = "books"
	tableBorrowings = "borrowings"
	tableFines      = "fines"
	tableAudit      = "circulation_audit"

	colID               = "id"
	colFirstName        = "first_name"
	colLastName         = "last_name"
	colPhone            = "phone"
	colAddress          = "address"
	colMembershipNumber = "membership_number"
	colPasswordHash     = "password_hash"
	colJoinedAt         = "joined_at"
	colISBN             = "isbn"
	colTitle            = "title"
	colAuthor           = "author"
	colPublisher        = "publisher"
	colPublicationYear  = "publication_year"
	colDescription      = "description"
	colCondition        = "condition"
	colLanguage         = "language"
	colEntryType        = "entry_type"
	colOccurredAt       = "occurred_at"
	colPayload          = "payload"
	colMemberID         = "member_id"
	colBookID           = "book_id"
	colBorrowingID      = "borrowing_id"
	colStatus           = "status"
	colTotalCopies      = "total_copies"
	colAvailableCopies  = "available_copies"
	colBorrowedAt       = "borrowed_at"
	colDueDate          = "due_date"
	colReturnedAt       = "returned_at"
	colNotes            = "notes"
	colAmountCents      = "amount_cents"
	colCurrency         = "currency"
	colReason           = "reason"
	colIsPaid           = "is_paid"
	colPaidAt           = "paid_at"
	colEmail            = "email"
	colActive           = "active"
	colUsername         = "username"
	colCreatedAt        = "created_at"
	colUpdatedAt        = "updated_at"

	dialectPostgres = "postgres"

	// Constraint names the engine maps to typed errors. The schema in
	// schema.go must create them under exactly these names.
	constraintOneOpenBorrowing = "borrowings_one_open_per_member_book"
	constraintOneFine          = "fines_one_per_borrowing"
	constraintMemberEmail      = "members_email_unique"

	logMsgBuildQueryFailed     = "failed to build sql query"
	logMsgDBQueryFailed        = "database query execution failed"
	logMsgDBExecFailed         = "database execution failed"
	logMsgCloseRowsFailed      = "failed to close database rows"
	logMsgScanRowFailed        = "failed to scan database row"
	logMsgRowsAffectedFailed   = "failed to get rows affected count"
	logMsgBeginTxFailed        = "failed to begin transaction"
	logMsgCommitFailed         = "failed to commit transaction"
	logMsgRollbackFailed       = "failed to roll back transaction"
	logMsgConcurrencyConflict  = "concurrency conflict detected"
	logMsgIncrementSkipped     = "available copies already equal total copies, skipping increment"
	logMsgCheckedOut           = "book checked out"
	logMsgReturned             = "book returned"
	logMsgFineCreated          = "fine created for overdue return"
	logMsgRestocked            = "book restocked"
	logMsgMemberRegistered     = "member registered"
	logMsgStatusChanged        = "membership status changed"
	logMsgFinePaid             = "fine marked paid"
	logMsgSQLExecuted          = "executed sql for: "
	logMsgOperation            = "circulation operation: "
	logMsgMarshalPayloadFailed = "marshaling audit payload failed"

	logAttrError       = "error"
	logAttrQuery       = "query"
	logAttrMemberID    = "member_id"
	logAttrBookID      = "book_id"
	logAttrBorrowingID = "borrowing_id"
	logAttrFineID      = "fine_id"
	logAttrAmount      = "amount"
	logAttrDaysOverdue = "days_overdue"
	logAttrAvailable   = "available_copies"
	logAttrTotal       = "total_copies"
	logAttrDurationMS  = "duration_ms"
	logAttrStatus      = "status"
	logAttrDelta       = "delta"

	actionLockMember      = "lockMember"
	actionLockBook        = "lockBook"
	actionLockBorrowing   = "lockBorrowing"
	actionQueryFine       = "queryFine"
	actionQueryMember     = "queryMember"
	actionQueryBook       = "queryBook"
	actionQueryBorrowing  = "queryBorrowing"
	actionQueryBorrowings = "queryBorrowings"
	actionQueryFines      = "queryFines"
	actionQueryAudit      = "queryAudit"
	actionInsertBorrowing = "insertBorrowing"
	actionInsertBook      = "insertBook"
	actionInsertFine      = "insertFine"
	actionInsertMember    = "insertMember"
	actionInsertAccount   = "insertAccount"
	actionInsertAudit     = "insertAudit"
	actionUpdateBook      = "updateBook"
	actionUpdateBorrowing = "updateBorrowing"
	actionUpdateMember    = "updateMember"
	actionUpdateAccount   = "updateAccount"
	actionUpdateFine      = "updateFine"
)

var (
	ErrBuildingQueryFailed       = errors.New("building sql query failed")
	ErrQueryingRowsFailed        = errors.New("querying rows failed")
	ErrExecutingStatementFailed  = errors.New("executing sql statement failed")
	ErrScanningDBRowFailed       = errors.New("scanning database row failed")
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")
	ErrBeginningTxFailed         = errors.New("beginning transaction failed")
	ErrCommittingTxFailed        = errors.New("committing transaction failed")
	ErrMarshalingPayloadFailed   = errors.New("marshaling audit payload failed")
)

// Engine is the transactional borrowing engine over PostgreSQL.
//
// It is the only code path permitted to create or close a Borrowing and to
// move a Book's available copy count for checkout/return. Every operation
// runs inside exactly one database transaction; shared counters are written
// exclusively through guarded compare-and-update statements whose
// affected-row count is checked, never through read-modify-write.
type Engine struct {
	db               adapters.DBAdapter
	clock            circulation.Clock
	policy           circulation.Policy
	logger           Logger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
	contextualLogger ContextualLogger
}

// NewEngineFromPGXPool creates a new Engine using a pgx pool with optional configuration.
func NewEngineFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Engine, error) {
	if pool == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(pool), options...)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options...)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options...)
}

func newEngine(db adapters.DBAdapter, options ...Option) (*Engine, error) {
	engine := &Engine{
		db:     db,
		clock:  circulation.SystemClock(),
		policy: circulation.DefaultPolicy(),
	}

	for _, option := range options {
		if err := option(engine); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// Policy returns the circulation policy the engine was configured with.
func (e *Engine) Policy() circulation.Policy {
	return e.policy
}

// beginTx starts the single transaction an engine operation runs in.
func (e *Engine) beginTx(ctx context.Context) (adapters.DBTx, error) {
	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		e.logError(ctx, logMsgBeginTxFailed, err)
		return nil, errors.Join(ErrBeginningTxFailed, err)
	}

	return tx, nil
}

// rollback is safe to defer unconditionally - rolling back a committed
// transaction is a no-op in the adapters.
func (e *Engine) rollback(ctx context.Context, tx adapters.DBTx) {
	if err := tx.Rollback(ctx); err != nil {
		e.logWarn(ctx, logMsgRollbackFailed, logAttrError, err.Error())
	}
}

func (e *Engine) commit(ctx context.Context, tx adapters.DBTx) error {
	if err := tx.Commit(ctx); err != nil {
		e.logError(ctx, logMsgCommitFailed, err)

		if adapters.IsConcurrencyFailure(err) {
			return errors.Join(circulation.ErrConcurrencyConflict, err)
		}

		return errors.Join(ErrCommittingTxFailed, err)
	}

	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, circulation.ErrConcurrencyConflict)
}

// translateExecError maps transient store-level concurrency failures (lock
// timeouts, deadlocks broken by the store, serialization failures) onto
// circulation.ErrConcurrencyConflict so callers see one retryable kind.
func translateExecError(err error) error {
	if adapters.IsConcurrencyFailure(err) {
		return errors.Join(circulation.ErrConcurrencyConflict, err)
	}

	return errors.Join(ErrExecutingStatementFailed, err)
}

// translateQueryError is the read-path counterpart of translateExecError.
// Locked reads can hit the same deadlocks and lock timeouts as statements,
// and pgx surfaces those only at row iteration.
func translateQueryError(err error) error {
	if adapters.IsConcurrencyFailure(err) {
		return errors.Join(circulation.ErrConcurrencyConflict, err)
	}

	return errors.Join(ErrQueryingRowsFailed, err)
}
