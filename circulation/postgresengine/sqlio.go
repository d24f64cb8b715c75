package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine/internal/adapters"
)

// rowQueryer is satisfied by both the adapter (lock-free reads) and a
// transaction (locked reads).
type rowQueryer interface {
	Query(ctx context.Context, query string) (adapters.DBRows, error)
}

// statementExecer is satisfied by both the adapter and a transaction.
type statementExecer interface {
	Exec(ctx context.Context, query string) (adapters.DBResult, error)
}

// executeQuery runs a SELECT and returns the rows with debug query logging.
func (e *Engine) executeQuery(ctx context.Context, runner rowQueryer, sqlQuery string, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := runner.Query(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if queryErr != nil {
		e.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, translateQueryError(queryErr)
	}

	return rows, nil
}

// executeStatement runs a mutating statement and returns the affected-row
// count, which guarded compare-and-update callers must check.
func (e *Engine) executeStatement(ctx context.Context, runner statementExecer, sqlQuery string, action string) (int64, error) {
	start := time.Now()
	result, execErr := runner.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if execErr != nil {
		e.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, translateExecError(execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		e.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return 0, errors.Join(ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (e *Engine) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		e.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func memberColumns() []any {
	return []any{
		colID, colFirstName, colLastName, colEmail, colPhone, colAddress,
		colMembershipNumber, colPasswordHash, colStatus, colJoinedAt,
		colCreatedAt, colUpdatedAt,
	}
}

func bookColumns() []any {
	return []any{
		colID, colISBN, colTitle, colAuthor, colPublisher, colPublicationYear,
		colDescription, colTotalCopies, colAvailableCopies, colCondition,
		colLanguage, colCreatedAt, colUpdatedAt,
	}
}

func borrowingColumns() []any {
	return []any{
		colID, colMemberID, colBookID, colBorrowedAt, colDueDate,
		colReturnedAt, colNotes, colCreatedAt, colUpdatedAt,
	}
}

func fineColumns() []any {
	return []any{
		colID, colBorrowingID, colAmountCents, colCurrency, colReason,
		colIsPaid, colPaidAt, colCreatedAt, colUpdatedAt,
	}
}

func scanMember(rows adapters.DBRows) (circulation.Member, error) {
	var member circulation.Member
	var status string

	err := rows.Scan(
		&member.ID, &member.FirstName, &member.LastName, &member.Email,
		&member.Phone, &member.Address, &member.MembershipNumber,
		&member.PasswordHash, &status, &member.JoinedAt,
		&member.CreatedAt, &member.UpdatedAt,
	)
	if err != nil {
		return circulation.Member{}, err
	}

	member.Status = circulation.MembershipStatus(status)

	return member, nil
}

func scanBook(rows adapters.DBRows) (circulation.Book, error) {
	var book circulation.Book
	var condition string

	err := rows.Scan(
		&book.ID, &book.ISBN, &book.Title, &book.Author, &book.Publisher,
		&book.PublicationYear, &book.Description, &book.TotalCopies,
		&book.AvailableCopies, &condition, &book.Language,
		&book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return circulation.Book{}, err
	}

	book.Condition = circulation.BookCondition(condition)

	return book, nil
}

func scanBorrowing(rows adapters.DBRows) (circulation.Borrowing, error) {
	var borrowing circulation.Borrowing

	err := rows.Scan(
		&borrowing.ID, &borrowing.MemberID, &borrowing.BookID,
		&borrowing.BorrowedAt, &borrowing.DueDate, &borrowing.ReturnedAt,
		&borrowing.Notes, &borrowing.CreatedAt, &borrowing.UpdatedAt,
	)
	if err != nil {
		return circulation.Borrowing{}, err
	}

	return borrowing, nil
}

func scanFine(rows adapters.DBRows) (circulation.Fine, error) {
	var fine circulation.Fine
	var amountCents int64
	var currency string

	err := rows.Scan(
		&fine.ID, &fine.BorrowingID, &amountCents, &currency, &fine.Reason,
		&fine.Paid, &fine.PaidAt, &fine.CreatedAt, &fine.UpdatedAt,
	)
	if err != nil {
		return circulation.Fine{}, err
	}

	fine.Amount = circulation.NewMoney(amountCents, circulation.Currency(currency))

	return fine, nil
}

type rowScanner[T any] func(rows adapters.DBRows) (T, error)

// querySingle builds and runs a single-row SELECT. The notFound error is
// returned when the statement matches no row.
func querySingle[T any](
	e *Engine,
	ctx context.Context,
	runner rowQueryer,
	stmt *goqu.SelectDataset,
	scan rowScanner[T],
	action string,
	notFound error,
) (T, error) {

	var empty T

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return empty, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := e.executeQuery(ctx, runner, sqlQuery, action)
	if queryErr != nil {
		return empty, queryErr
	}
	defer e.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			e.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
			return empty, translateQueryError(rowsErr)
		}

		return empty, notFound
	}

	entity, scanErr := scan(rows)
	if scanErr != nil {
		e.logError(ctx, logMsgScanRowFailed, scanErr)
		return empty, errors.Join(ErrScanningDBRowFailed, scanErr)
	}

	return entity, nil
}

// queryList builds and runs a multi-row SELECT.
func queryList[T any](
	e *Engine,
	ctx context.Context,
	runner rowQueryer,
	stmt *goqu.SelectDataset,
	scan rowScanner[T],
	action string,
) ([]T, error) {

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := e.executeQuery(ctx, runner, sqlQuery, action)
	if queryErr != nil {
		return nil, queryErr
	}
	defer e.closeRows(ctx, rows)

	entities := make([]T, 0)

	for rows.Next() {
		entity, scanErr := scan(rows)
		if scanErr != nil {
			e.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(ErrScanningDBRowFailed, scanErr)
		}

		entities = append(entities, entity)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		e.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		return nil, translateQueryError(rowsErr)
	}

	return entities, nil
}

// lockMemberRow reads a member under an exclusive row lock, valid for the
// remainder of the transaction.
func (e *Engine) lockMemberRow(ctx context.Context, tx adapters.DBTx, memberID uuid.UUID) (circulation.Member, error) {
	stmt := builder().
		From(tableMembers).
		Select(memberColumns()...).
		Where(goqu.C(colID).Eq(memberID.String())).
		ForUpdate(exp.Wait)

	return querySingle(e, ctx, tx, stmt, scanMember, actionLockMember, circulation.ErrMemberNotFound)
}

// lockBookRow reads a book under an exclusive row lock. Lock ordering
// invariant: a book row is only ever locked after its parent entity for the
// operation (member on checkout, borrowing on return) has been locked and
// validated.
func (e *Engine) lockBookRow(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID) (circulation.Book, error) {
	stmt := builder().
		From(tableBooks).
		Select(bookColumns()...).
		Where(goqu.C(colID).Eq(bookID.String())).
		ForUpdate(exp.Wait)

	return querySingle(e, ctx, tx, stmt, scanBook, actionLockBook, circulation.ErrBookNotFound)
}

// lockBorrowingRow reads a borrowing under an exclusive row lock.
func (e *Engine) lockBorrowingRow(ctx context.Context, tx adapters.DBTx, borrowingID uuid.UUID) (circulation.Borrowing, error) {
	stmt := builder().
		From(tableBorrowings).
		Select(borrowingColumns()...).
		Where(goqu.C(colID).Eq(borrowingID.String())).
		ForUpdate(exp.Wait)

	return querySingle(e, ctx, tx, stmt, scanBorrowing, actionLockBorrowing, circulation.ErrBorrowingNotFound)
}

// fineForBorrowing reads the fine attached to a borrowing, if any.
func (e *Engine) fineForBorrowing(ctx context.Context, runner rowQueryer, borrowingID uuid.UUID) (circulation.Fine, error) {
	stmt := builder().
		From(tableFines).
		Select(fineColumns()...).
		Where(goqu.C(colBorrowingID).Eq(borrowingID.String()))

	return querySingle(e, ctx, runner, stmt, scanFine, actionQueryFine, circulation.ErrFineNotFound)
}
