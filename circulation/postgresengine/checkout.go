package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine/internal/adapters"
)

const operationCheckOut = "checkout"

// CheckOutOption configures optional attributes of a checkout.
type CheckOutOption func(*checkOutConfig)

type checkOutConfig struct {
	dueDate *time.Time
	notes   string
}

// WithDueDate overrides the due date the configured policy would assign.
// The instant is truncated to its calendar date, matching how due dates
// are stored.
func WithDueDate(dueDate time.Time) CheckOutOption {
	return func(cfg *checkOutConfig) {
		date := circulation.DateOf(dueDate)
		cfg.dueDate = &date
	}
}

// WithNotes attaches free-form notes to the borrowing.
func WithNotes(notes string) CheckOutOption {
	return func(cfg *checkOutConfig) {
		cfg.notes = notes
	}
}

// CheckOut lends one copy of a book to a member.
//
// The whole operation runs in a single transaction that locks the member row
// first and the book row second. The available-copy decrement is a guarded
// statement: if another transaction consumed the last copy between our locked
// read and the update, zero rows are affected and the operation fails with
// circulation.ErrConcurrencyConflict so callers can retry. A second open
// borrowing of the same book by the same member is rejected by the partial
// unique constraint and surfaces as circulation.ErrBookAlreadyBorrowed.
func (e *Engine) CheckOut(ctx context.Context, memberID uuid.UUID, bookID uuid.UUID, options ...CheckOutOption) (circulation.Borrowing, error) {
	var cfg checkOutConfig
	for _, option := range options {
		option(&cfg)
	}

	start := time.Now()
	ctx, span := e.startSpan(ctx, operationCheckOut)

	borrowing, err := e.checkOut(ctx, memberID, bookID, cfg)

	duration := time.Since(start)
	status := spanStatusFor(err)
	e.recordDuration(ctx, operationCheckOut, status, duration)
	e.finishSpan(span, status)

	switch {
	case err == nil:
		e.incrementCounter(ctx, metricCheckouts, map[string]string{spanAttrOperation: operationCheckOut})
		e.logOperation(ctx, operationCheckOut,
			logAttrMemberID, memberID.String(),
			logAttrBookID, bookID.String(),
			logAttrBorrowingID, borrowing.ID.String(),
			logAttrDurationMS, e.toMilliseconds(duration))
	case isConflict(err):
		e.recordConflictMetrics(ctx, operationCheckOut)
	default:
		e.recordErrorMetrics(ctx, operationCheckOut, statusError)
	}

	return borrowing, err
}

func (e *Engine) checkOut(ctx context.Context, memberID uuid.UUID, bookID uuid.UUID, cfg checkOutConfig) (circulation.Borrowing, error) {
	now := e.clock.Now()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return circulation.Borrowing{}, err
	}
	defer e.rollback(ctx, tx)

	member, err := e.lockMemberRow(ctx, tx, memberID)
	if err != nil {
		return circulation.Borrowing{}, err
	}

	if !member.CanBorrow() {
		return circulation.Borrowing{}, circulation.ErrMemberNotActive
	}

	book, err := e.lockBookRow(ctx, tx, bookID)
	if err != nil {
		return circulation.Borrowing{}, err
	}

	if !book.IsAvailable() {
		return circulation.Borrowing{}, circulation.ErrBookNotAvailable
	}

	if err = e.decrementAvailableCopies(ctx, tx, bookID, now); err != nil {
		return circulation.Borrowing{}, err
	}

	dueDate := e.policy.DueDateFor(now)
	if cfg.dueDate != nil {
		dueDate = *cfg.dueDate
	}

	borrowing := circulation.Borrowing{
		ID:         uuid.New(),
		MemberID:   memberID,
		BookID:     bookID,
		BorrowedAt: now,
		DueDate:    dueDate,
		Notes:      cfg.notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err = e.insertBorrowing(ctx, tx, borrowing); err != nil {
		return circulation.Borrowing{}, err
	}

	err = e.appendAudit(ctx, tx, auditCheckedOut, now, map[string]any{
		"borrowing_id": borrowing.ID.String(),
		"member_id":    memberID.String(),
		"book_id":      bookID.String(),
		"due_date":     dueDate,
	})
	if err != nil {
		return circulation.Borrowing{}, err
	}

	if err = e.commit(ctx, tx); err != nil {
		return circulation.Borrowing{}, err
	}

	return borrowing, nil
}

// decrementAvailableCopies takes one copy off the shelf. The guard clause
// keeps the count from ever going below zero; zero affected rows means
// another transaction took the last copy first.
func (e *Engine) decrementAvailableCopies(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID, now time.Time) error {
	stmt := builder().
		Update(tableBooks).
		Set(goqu.Record{
			colAvailableCopies: goqu.L(colAvailableCopies + " - 1"),
			colUpdatedAt:       now,
		}).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.C(colAvailableCopies).Gt(0),
		)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, execErr := e.executeStatement(ctx, tx, sqlQuery, actionUpdateBook)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		e.logWarn(ctx, logMsgConcurrencyConflict, logAttrBookID, bookID.String())
		return circulation.ErrConcurrencyConflict
	}

	return nil
}

func (e *Engine) insertBorrowing(ctx context.Context, tx adapters.DBTx, borrowing circulation.Borrowing) error {
	stmt := builder().
		Insert(tableBorrowings).
		Rows(goqu.Record{
			colID:         borrowing.ID.String(),
			colMemberID:   borrowing.MemberID.String(),
			colBookID:     borrowing.BookID.String(),
			colBorrowedAt: borrowing.BorrowedAt,
			colDueDate:    borrowing.DueDate,
			colNotes:      borrowing.Notes,
			colCreatedAt:  borrowing.CreatedAt,
			colUpdatedAt:  borrowing.UpdatedAt,
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := e.executeStatement(ctx, tx, sqlQuery, actionInsertBorrowing); execErr != nil {
		if constraint, ok := adapters.UniqueViolation(execErr); ok && constraint == constraintOneOpenBorrowing {
			return circulation.ErrBookAlreadyBorrowed
		}

		return execErr
	}

	return nil
}
