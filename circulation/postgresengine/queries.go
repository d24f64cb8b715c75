package postgresengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/pkoernig/borrowing-engine-go/circulation"
)

// GetMember returns a member by id without taking any locks.
func (e *Engine) GetMember(ctx context.Context, memberID uuid.UUID) (circulation.Member, error) {
	stmt := builder().
		From(tableMembers).
		Select(memberColumns()...).
		Where(goqu.C(colID).Eq(memberID.String()))

	return querySingle(e, ctx, e.db, stmt, scanMember, actionQueryMember, circulation.ErrMemberNotFound)
}

// GetMemberByEmail returns a member by their registered email.
func (e *Engine) GetMemberByEmail(ctx context.Context, email string) (circulation.Member, error) {
	stmt := builder().
		From(tableMembers).
		Select(memberColumns()...).
		Where(goqu.C(colEmail).Eq(email))

	return querySingle(e, ctx, e.db, stmt, scanMember, actionQueryMember, circulation.ErrMemberNotFound)
}

// GetBook returns a book by id without taking any locks.
func (e *Engine) GetBook(ctx context.Context, bookID uuid.UUID) (circulation.Book, error) {
	stmt := builder().
		From(tableBooks).
		Select(bookColumns()...).
		Where(goqu.C(colID).Eq(bookID.String()))

	return querySingle(e, ctx, e.db, stmt, scanBook, actionQueryBook, circulation.ErrBookNotFound)
}

// GetBorrowing returns a borrowing by id without taking any locks.
func (e *Engine) GetBorrowing(ctx context.Context, borrowingID uuid.UUID) (circulation.Borrowing, error) {
	stmt := builder().
		From(tableBorrowings).
		Select(borrowingColumns()...).
		Where(goqu.C(colID).Eq(borrowingID.String()))

	return querySingle(e, ctx, e.db, stmt, scanBorrowing, actionQueryBorrowing, circulation.ErrBorrowingNotFound)
}

// OpenBorrowingsForMember returns the member's unreturned borrowings, most
// recently borrowed first.
func (e *Engine) OpenBorrowingsForMember(ctx context.Context, memberID uuid.UUID) ([]circulation.Borrowing, error) {
	stmt := builder().
		From(tableBorrowings).
		Select(borrowingColumns()...).
		Where(
			goqu.C(colMemberID).Eq(memberID.String()),
			goqu.C(colReturnedAt).IsNull(),
		).
		Order(goqu.C(colBorrowedAt).Desc())

	return queryList(e, ctx, e.db, stmt, scanBorrowing, actionQueryBorrowings)
}

// OverdueBorrowings returns all open borrowings whose due date lies strictly
// before today. The day boundary comes from the engine clock so tests can
// pin it. A borrowing due today is not overdue.
func (e *Engine) OverdueBorrowings(ctx context.Context) ([]circulation.Borrowing, error) {
	now := e.clock.Now().UTC()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stmt := builder().
		From(tableBorrowings).
		Select(borrowingColumns()...).
		Where(
			goqu.C(colReturnedAt).IsNull(),
			goqu.C(colDueDate).Lt(startOfToday),
		).
		Order(goqu.C(colDueDate).Asc())

	return queryList(e, ctx, e.db, stmt, scanBorrowing, actionQueryBorrowings)
}
