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

const operationReturn = "return"

// Return closes an open borrowing and restores the book's availability.
//
// The borrowing row is locked first, then the book row, in the same member
// precedence order as checkout uses so the two operations cannot deadlock
// each other. Returning an already-returned borrowing fails with
// circulation.ErrBorrowingAlreadyReturned before anything is written. When
// the borrowing is overdue on the day of return a fine is created; the
// unique constraint on fines guarantees at most one per borrowing even under
// a retried return, in which case the existing fine is reported instead.
func (e *Engine) Return(ctx context.Context, borrowingID uuid.UUID) (circulation.Borrowing, *circulation.Fine, error) {
	start := time.Now()
	ctx, span := e.startSpan(ctx, operationReturn)

	borrowing, fine, err := e.returnBook(ctx, borrowingID)

	duration := time.Since(start)
	status := spanStatusFor(err)
	e.recordDuration(ctx, operationReturn, status, duration)
	e.finishSpan(span, status)

	switch {
	case err == nil:
		e.incrementCounter(ctx, metricReturns, map[string]string{spanAttrOperation: operationReturn})
		e.logOperation(ctx, operationReturn,
			logAttrBorrowingID, borrowingID.String(),
			logAttrDurationMS, e.toMilliseconds(duration))
	case isConflict(err):
		e.recordConflictMetrics(ctx, operationReturn)
	default:
		e.recordErrorMetrics(ctx, operationReturn, statusError)
	}

	return borrowing, fine, err
}

func (e *Engine) returnBook(ctx context.Context, borrowingID uuid.UUID) (circulation.Borrowing, *circulation.Fine, error) {
	now := e.clock.Now()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return circulation.Borrowing{}, nil, err
	}
	defer e.rollback(ctx, tx)

	borrowing, err := e.lockBorrowingRow(ctx, tx, borrowingID)
	if err != nil {
		return circulation.Borrowing{}, nil, err
	}

	if !borrowing.IsOpen() {
		return circulation.Borrowing{}, nil, circulation.ErrBorrowingAlreadyReturned
	}

	if _, err = e.lockBookRow(ctx, tx, borrowing.BookID); err != nil {
		return circulation.Borrowing{}, nil, err
	}

	if err = e.closeBorrowing(ctx, tx, borrowingID, now); err != nil {
		return circulation.Borrowing{}, nil, err
	}

	// days overdue are computed against the still-open borrowing, before
	// the in-memory copy is stamped as returned
	daysOverdue := borrowing.DaysOverdue(now)

	returnedAt := now
	borrowing.ReturnedAt = &returnedAt
	borrowing.UpdatedAt = now

	if err = e.incrementAvailableCopies(ctx, tx, borrowing.BookID); err != nil {
		return circulation.Borrowing{}, nil, err
	}

	var fine *circulation.Fine

	if daysOverdue > 0 {
		fine, err = e.createFineForReturn(ctx, tx, borrowing, daysOverdue, now)
		if err != nil {
			return circulation.Borrowing{}, nil, err
		}
	}

	auditPayload := map[string]any{
		"borrowing_id": borrowing.ID.String(),
		"member_id":    borrowing.MemberID.String(),
		"book_id":      borrowing.BookID.String(),
		"days_overdue": daysOverdue,
	}
	if fine != nil {
		auditPayload["fine_id"] = fine.ID.String()
		auditPayload["fine_amount_cents"] = fine.Amount.Amount
	}

	if err = e.appendAudit(ctx, tx, auditReturned, now, auditPayload); err != nil {
		return circulation.Borrowing{}, nil, err
	}

	if err = e.commit(ctx, tx); err != nil {
		return circulation.Borrowing{}, nil, err
	}

	return borrowing, fine, nil
}

// closeBorrowing stamps returned_at, guarded on the borrowing still being
// open so a racing return cannot close it twice.
func (e *Engine) closeBorrowing(ctx context.Context, tx adapters.DBTx, borrowingID uuid.UUID, now time.Time) error {
	stmt := builder().
		Update(tableBorrowings).
		Set(goqu.Record{
			colReturnedAt: now,
			colUpdatedAt:  now,
		}).
		Where(
			goqu.C(colID).Eq(borrowingID.String()),
			goqu.C(colReturnedAt).IsNull(),
		)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, execErr := e.executeStatement(ctx, tx, sqlQuery, actionUpdateBorrowing)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return circulation.ErrBorrowingAlreadyReturned
	}

	return nil
}

// incrementAvailableCopies puts one copy back on the shelf. The guard keeps
// available from exceeding total; when it trips the increment is skipped
// with a warning instead of failing the return, because the member has
// handed the book back regardless of what the counter says.
func (e *Engine) incrementAvailableCopies(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID) error {
	stmt := builder().
		Update(tableBooks).
		Set(goqu.Record{
			colAvailableCopies: goqu.L(colAvailableCopies + " + 1"),
		}).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.L(colAvailableCopies+" < "+colTotalCopies),
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
		e.logWarn(ctx, logMsgIncrementSkipped, logAttrBookID, bookID.String())
	}

	return nil
}

func (e *Engine) createFineForReturn(ctx context.Context, tx adapters.DBTx, borrowing circulation.Borrowing, daysOverdue int, now time.Time) (*circulation.Fine, error) {
	fine := circulation.Fine{
		ID:          uuid.New(),
		BorrowingID: borrowing.ID,
		Amount:      e.policy.CalculateFine(daysOverdue),
		Reason:      circulation.FineReason(daysOverdue),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// ON CONFLICT DO NOTHING instead of catching the unique violation - a
	// violation would abort the whole transaction, losing the return itself.
	stmt := builder().
		Insert(tableFines).
		Rows(goqu.Record{
			colID:          fine.ID.String(),
			colBorrowingID: fine.BorrowingID.String(),
			colAmountCents: fine.Amount.Amount,
			colCurrency:    string(fine.Amount.Currency),
			colReason:      fine.Reason,
			colIsPaid:      false,
			colCreatedAt:   fine.CreatedAt,
			colUpdatedAt:   fine.UpdatedAt,
		}).
		OnConflict(goqu.DoNothing())

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, execErr := e.executeStatement(ctx, tx, sqlQuery, actionInsertFine)
	if execErr != nil {
		return nil, execErr
	}

	if rowsAffected == 0 {
		existing, queryErr := e.fineForBorrowing(ctx, tx, borrowing.ID)
		if queryErr != nil {
			return nil, queryErr
		}

		return &existing, nil
	}

	e.incrementCounter(ctx, metricFinesCreated, map[string]string{spanAttrOperation: operationReturn})
	e.logInfo(ctx, logMsgFineCreated,
		logAttrFineID, fine.ID.String(),
		logAttrBorrowingID, borrowing.ID.String(),
		logAttrAmount, fine.Amount.String(),
		logAttrDaysOverdue, daysOverdue)

	return &fine, nil
}
