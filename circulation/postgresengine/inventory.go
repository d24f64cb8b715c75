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

const operationRestock = "restock"

// AddBookParams carries the input for AddBook.
type AddBookParams struct {
	ISBN            string
	Title           string
	Author          string
	Publisher       string
	PublicationYear int
	Description     string
	Copies          int
	Condition       circulation.BookCondition
	Language        string
}

var (
	ErrEmptyBookTitle   = errors.New("book title must not be empty")
	ErrInvalidCopyCount = errors.New("book copy count must be positive")
)

// AddBook registers a new title with the given number of copies, all
// immediately available.
func (e *Engine) AddBook(ctx context.Context, params AddBookParams) (circulation.Book, error) {
	if params.Title == "" {
		return circulation.Book{}, ErrEmptyBookTitle
	}

	if params.Copies <= 0 {
		return circulation.Book{}, ErrInvalidCopyCount
	}

	condition := params.Condition
	if condition == "" {
		condition = circulation.ConditionGood
	}

	now := e.clock.Now()

	book := circulation.Book{
		ID:              uuid.New(),
		ISBN:            params.ISBN,
		Title:           params.Title,
		Author:          params.Author,
		Publisher:       params.Publisher,
		PublicationYear: params.PublicationYear,
		Description:     params.Description,
		TotalCopies:     params.Copies,
		AvailableCopies: params.Copies,
		Condition:       condition,
		Language:        params.Language,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	stmt := builder().
		Insert(tableBooks).
		Rows(goqu.Record{
			colID:              book.ID.String(),
			colISBN:            book.ISBN,
			colTitle:           book.Title,
			colAuthor:          book.Author,
			colPublisher:       book.Publisher,
			colPublicationYear: book.PublicationYear,
			colDescription:     book.Description,
			colTotalCopies:     book.TotalCopies,
			colAvailableCopies: book.AvailableCopies,
			colCondition:       string(book.Condition),
			colLanguage:        book.Language,
			colCreatedAt:       book.CreatedAt,
			colUpdatedAt:       book.UpdatedAt,
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return circulation.Book{}, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := e.executeStatement(ctx, e.db, sqlQuery, actionInsertBook); execErr != nil {
		return circulation.Book{}, execErr
	}

	return book, nil
}

// Restock raises a book's total and available copy counts by delta in one
// guarded statement, so no reader can ever observe the two counters moved
// apart.
func (e *Engine) Restock(ctx context.Context, bookID uuid.UUID, delta int) (circulation.Book, error) {
	start := time.Now()
	ctx, span := e.startSpan(ctx, operationRestock)

	book, err := e.restock(ctx, bookID, delta)

	duration := time.Since(start)
	status := spanStatusFor(err)
	e.recordDuration(ctx, operationRestock, status, duration)
	e.finishSpan(span, status)

	if err == nil {
		e.logOperation(ctx, operationRestock,
			logAttrBookID, bookID.String(),
			logAttrDelta, delta,
			logAttrDurationMS, e.toMilliseconds(duration))
	}

	return book, err
}

func (e *Engine) restock(ctx context.Context, bookID uuid.UUID, delta int) (circulation.Book, error) {
	if delta <= 0 {
		return circulation.Book{}, circulation.ErrInvalidRestockDelta
	}

	now := e.clock.Now()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return circulation.Book{}, err
	}
	defer e.rollback(ctx, tx)

	if err = e.raiseCopyCounts(ctx, tx, bookID, delta, now); err != nil {
		return circulation.Book{}, err
	}

	book, err := e.lockBookRow(ctx, tx, bookID)
	if err != nil {
		return circulation.Book{}, err
	}

	err = e.appendAudit(ctx, tx, auditRestocked, now, map[string]any{
		"book_id":          bookID.String(),
		"delta":            delta,
		"total_copies":     book.TotalCopies,
		"available_copies": book.AvailableCopies,
	})
	if err != nil {
		return circulation.Book{}, err
	}

	if err = e.commit(ctx, tx); err != nil {
		return circulation.Book{}, err
	}

	e.logInfo(ctx, logMsgRestocked,
		logAttrBookID, bookID.String(),
		logAttrDelta, delta,
		logAttrAvailable, book.AvailableCopies,
		logAttrTotal, book.TotalCopies)

	return book, nil
}

func (e *Engine) raiseCopyCounts(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID, delta int, now time.Time) error {
	stmt := builder().
		Update(tableBooks).
		Set(goqu.Record{
			colTotalCopies:     goqu.L("? + ?", goqu.C(colTotalCopies), delta),
			colAvailableCopies: goqu.L("? + ?", goqu.C(colAvailableCopies), delta),
			colUpdatedAt:       now,
		}).
		Where(goqu.C(colID).Eq(bookID.String()))

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
		return circulation.ErrBookNotFound
	}

	return nil
}
