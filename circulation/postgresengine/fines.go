package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/pkoernig/borrowing-engine-go/circulation"
)

const operationMarkFinePaid = "markFinePaid"

// MarkFinePaid settles an open fine. The update is guarded on the fine being
// unpaid; when zero rows are affected the fine is re-read to tell a missing
// fine apart from one that was already settled.
func (e *Engine) MarkFinePaid(ctx context.Context, fineID uuid.UUID) (circulation.Fine, error) {
	start := time.Now()
	ctx, span := e.startSpan(ctx, operationMarkFinePaid)

	fine, err := e.markFinePaid(ctx, fineID)

	duration := time.Since(start)
	status := spanStatusFor(err)
	e.recordDuration(ctx, operationMarkFinePaid, status, duration)
	e.finishSpan(span, status)

	if err == nil {
		e.logOperation(ctx, operationMarkFinePaid,
			logAttrFineID, fineID.String(),
			logAttrDurationMS, e.toMilliseconds(duration))
	}

	return fine, err
}

func (e *Engine) markFinePaid(ctx context.Context, fineID uuid.UUID) (circulation.Fine, error) {
	now := e.clock.Now()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return circulation.Fine{}, err
	}
	defer e.rollback(ctx, tx)

	stmt := builder().
		Update(tableFines).
		Set(goqu.Record{
			colIsPaid:    true,
			colPaidAt:    now,
			colUpdatedAt: now,
		}).
		Where(
			goqu.C(colID).Eq(fineID.String()),
			goqu.C(colIsPaid).IsFalse(),
		)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return circulation.Fine{}, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, execErr := e.executeStatement(ctx, tx, sqlQuery, actionUpdateFine)
	if execErr != nil {
		return circulation.Fine{}, execErr
	}

	if rowsAffected == 0 {
		if _, lookupErr := e.fineByID(ctx, tx, fineID); lookupErr != nil {
			return circulation.Fine{}, lookupErr
		}

		return circulation.Fine{}, circulation.ErrFineAlreadyPaid
	}

	fine, err := e.fineByID(ctx, tx, fineID)
	if err != nil {
		return circulation.Fine{}, err
	}

	err = e.appendAudit(ctx, tx, auditFinePaid, now, map[string]any{
		"fine_id":      fine.ID.String(),
		"borrowing_id": fine.BorrowingID.String(),
		"amount_cents": fine.Amount.Amount,
	})
	if err != nil {
		return circulation.Fine{}, err
	}

	if err = e.commit(ctx, tx); err != nil {
		return circulation.Fine{}, err
	}

	e.logInfo(ctx, logMsgFinePaid,
		logAttrFineID, fine.ID.String(),
		logAttrAmount, fine.Amount.String())

	return fine, nil
}

func (e *Engine) fineByID(ctx context.Context, runner rowQueryer, fineID uuid.UUID) (circulation.Fine, error) {
	stmt := builder().
		From(tableFines).
		Select(fineColumns()...).
		Where(goqu.C(colID).Eq(fineID.String()))

	return querySingle(e, ctx, runner, stmt, scanFine, actionQueryFine, circulation.ErrFineNotFound)
}

// GetFine returns a fine by id.
func (e *Engine) GetFine(ctx context.Context, fineID uuid.UUID) (circulation.Fine, error) {
	return e.fineByID(ctx, e.db, fineID)
}

// UnpaidFinesForMember returns the member's unsettled fines, oldest first.
func (e *Engine) UnpaidFinesForMember(ctx context.Context, memberID uuid.UUID) ([]circulation.Fine, error) {
	fines := goqu.T(tableFines)
	borrowings := goqu.T(tableBorrowings)

	stmt := builder().
		From(fines).
		Select(
			fines.Col(colID), fines.Col(colBorrowingID), fines.Col(colAmountCents),
			fines.Col(colCurrency), fines.Col(colReason), fines.Col(colIsPaid),
			fines.Col(colPaidAt), fines.Col(colCreatedAt), fines.Col(colUpdatedAt),
		).
		Join(borrowings, goqu.On(fines.Col(colBorrowingID).Eq(borrowings.Col(colID)))).
		Where(
			borrowings.Col(colMemberID).Eq(memberID.String()),
			fines.Col(colIsPaid).IsFalse(),
		).
		Order(fines.Col(colCreatedAt).Asc())

	return queryList(e, ctx, e.db, stmt, scanFine, actionQueryFines)
}
