package postgresengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine"
	"github.com/pkoernig/borrowing-engine-go/testutil/circulation/helper"
	"github.com/pkoernig/borrowing-engine-go/testutil/circulation/helper/enginewrapper"
)

func setupTestEnvironment(t testing.TB, options ...postgresengine.Option) (context.Context, enginewrapper.Wrapper, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	wrapper := enginewrapper.CreateWrapperWithTestConfig(t, options...)
	enginewrapper.CleanUp(t, wrapper)

	cleanup := func() {
		enginewrapper.CleanUp(t, wrapper)
		wrapper.Close()
		cancel()
	}

	return ctx, wrapper, cleanup
}

func Test_CheckOut_LendsAnAvailableCopy(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 3)

	// act
	borrowing, err := engine.CheckOut(ctx, member.ID, book.ID)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, member.ID, borrowing.MemberID)
	assert.Equal(t, book.ID, borrowing.BookID)
	assert.True(t, borrowing.IsOpen())
	assert.Equal(t, circulation.DateOf(borrowing.BorrowedAt.AddDate(0, 0, engine.Policy().BorrowPeriodDays)), borrowing.DueDate)

	bookAfter, err := engine.GetBook(ctx, book.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, bookAfter.AvailableCopies)
	assert.Equal(t, 3, bookAfter.TotalCopies)
}

func Test_CheckOut_DueDateSurvivesARoundTripThroughTheStore(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)

	// act
	borrowing, checkOutErr := engine.CheckOut(ctx, member.ID, book.ID,
		postgresengine.WithDueDate(time.Now().UTC().AddDate(0, 0, 7).Add(3*time.Hour)))
	reRead, getErr := engine.GetBorrowing(ctx, borrowing.ID)

	// assert
	assert.NoError(t, checkOutErr)
	assert.NoError(t, getErr)
	assert.True(t, borrowing.DueDate.Equal(reRead.DueDate))
	assert.Equal(t, borrowing.DueDate, circulation.DateOf(borrowing.DueDate))
}

func Test_CheckOut_FailsForUnknownMember(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)

	// act
	_, err := engine.CheckOut(ctx, helper.GivenUniqueID(t), book.ID)

	// assert
	assert.ErrorIs(t, err, circulation.ErrMemberNotFound)
}

func Test_CheckOut_FailsForUnknownBook(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)

	// act
	_, err := engine.CheckOut(ctx, member.ID, helper.GivenUniqueID(t))

	// assert
	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

func Test_CheckOut_RefusesSuspendedMember(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenSuspendedMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)

	// act
	_, err := engine.CheckOut(ctx, member.ID, book.ID)

	// assert
	assert.ErrorIs(t, err, circulation.ErrMemberNotActive)

	bookAfter, getErr := engine.GetBook(ctx, book.ID)
	assert.NoError(t, getErr)
	assert.Equal(t, 1, bookAfter.AvailableCopies, "failed checkout must not touch the copy count")
}

func Test_CheckOut_RefusesBookWithNoAvailableCopies(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	firstMember := helper.GivenActiveMember(t, ctx, engine)
	secondMember := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	helper.GivenOpenBorrowing(t, ctx, engine, firstMember.ID, book.ID)

	// act
	_, err := engine.CheckOut(ctx, secondMember.ID, book.ID)

	// assert
	assert.ErrorIs(t, err, circulation.ErrBookNotAvailable)
}

func Test_CheckOut_RefusesSecondOpenBorrowingOfSameBook(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 5)
	helper.GivenOpenBorrowing(t, ctx, engine, member.ID, book.ID)

	// act
	_, err := engine.CheckOut(ctx, member.ID, book.ID)

	// assert
	assert.ErrorIs(t, err, circulation.ErrBookAlreadyBorrowed)

	bookAfter, getErr := engine.GetBook(ctx, book.ID)
	assert.NoError(t, getErr)
	assert.Equal(t, 4, bookAfter.AvailableCopies, "rejected checkout must roll back its decrement")
}

func Test_CheckOut_AllowsBorrowingAgainAfterReturn(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	borrowing := helper.GivenOpenBorrowing(t, ctx, engine, member.ID, book.ID)

	_, _, returnErr := engine.Return(ctx, borrowing.ID)
	assert.NoError(t, returnErr)

	// act
	secondBorrowing, err := engine.CheckOut(ctx, member.ID, book.ID)

	// assert
	assert.NoError(t, err)
	assert.NotEqual(t, borrowing.ID, secondBorrowing.ID)
}

func Test_Return_ClosesTheBorrowingAndRestoresAvailability(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 2)
	borrowing := helper.GivenOpenBorrowing(t, ctx, engine, member.ID, book.ID)

	// act
	returned, fine, err := engine.Return(ctx, borrowing.ID)

	// assert
	assert.NoError(t, err)
	assert.NotNil(t, returned.ReturnedAt)
	assert.Nil(t, fine, "a return within the borrow period must not create a fine")

	bookAfter, getErr := engine.GetBook(ctx, book.ID)
	assert.NoError(t, getErr)
	assert.Equal(t, 2, bookAfter.AvailableCopies)
}

func Test_Return_FailsForUnknownBorrowing(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// act
	_, _, err := engine.Return(ctx, helper.GivenUniqueID(t))

	// assert
	assert.ErrorIs(t, err, circulation.ErrBorrowingNotFound)
}

func Test_Return_FailsWhenAlreadyReturned(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	borrowing := helper.GivenOpenBorrowing(t, ctx, engine, member.ID, book.ID)

	_, _, firstErr := engine.Return(ctx, borrowing.ID)
	assert.NoError(t, firstErr)

	// act
	_, _, err := engine.Return(ctx, borrowing.ID)

	// assert
	assert.ErrorIs(t, err, circulation.ErrBorrowingAlreadyReturned)

	bookAfter, getErr := engine.GetBook(ctx, book.ID)
	assert.NoError(t, getErr)
	assert.Equal(t, 1, bookAfter.AvailableCopies, "the copy count must only be restored once")
}

func Test_Return_CreatesFineForOverdueBorrowing(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange - due five days ago, so the return is five days late
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	dueDate := time.Now().UTC().AddDate(0, 0, -5)

	borrowing, checkOutErr := engine.CheckOut(ctx, member.ID, book.ID, postgresengine.WithDueDate(dueDate))
	assert.NoError(t, checkOutErr)

	// act
	returned, fine, err := engine.Return(ctx, borrowing.ID)

	// assert
	assert.NoError(t, err)
	assert.NotNil(t, returned.ReturnedAt)
	assert.NotNil(t, fine)
	assert.Equal(t, int64(500), fine.Amount.Amount, "five days at one dollar per day")
	assert.Equal(t, "Overdue by 5 days", fine.Reason)
	assert.False(t, fine.Paid)
}

func Test_Return_CreatesNoFineWhenDueToday(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange - due earlier today; same calendar day is not overdue
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	now := time.Now().UTC()
	dueEarlierToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 1, 0, time.UTC)

	borrowing, checkOutErr := engine.CheckOut(ctx, member.ID, book.ID, postgresengine.WithDueDate(dueEarlierToday))
	assert.NoError(t, checkOutErr)

	// act
	_, fine, err := engine.Return(ctx, borrowing.ID)

	// assert
	assert.NoError(t, err)
	assert.Nil(t, fine)
}

func Test_MarkFinePaid_SettlesAnOpenFine(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	dueDate := time.Now().UTC().AddDate(0, 0, -3)

	borrowing, checkOutErr := engine.CheckOut(ctx, member.ID, book.ID, postgresengine.WithDueDate(dueDate))
	assert.NoError(t, checkOutErr)

	_, fine, returnErr := engine.Return(ctx, borrowing.ID)
	assert.NoError(t, returnErr)
	assert.NotNil(t, fine)

	// act
	paid, err := engine.MarkFinePaid(ctx, fine.ID)

	// assert
	assert.NoError(t, err)
	assert.True(t, paid.Paid)
	assert.NotNil(t, paid.PaidAt)

	unpaid, listErr := engine.UnpaidFinesForMember(ctx, member.ID)
	assert.NoError(t, listErr)
	assert.Empty(t, unpaid)
}

func Test_MarkFinePaid_FailsForSettledFine(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	dueDate := time.Now().UTC().AddDate(0, 0, -1)

	borrowing, checkOutErr := engine.CheckOut(ctx, member.ID, book.ID, postgresengine.WithDueDate(dueDate))
	assert.NoError(t, checkOutErr)

	_, fine, returnErr := engine.Return(ctx, borrowing.ID)
	assert.NoError(t, returnErr)
	assert.NotNil(t, fine)

	_, firstErr := engine.MarkFinePaid(ctx, fine.ID)
	assert.NoError(t, firstErr)

	// act
	_, err := engine.MarkFinePaid(ctx, fine.ID)

	// assert
	assert.ErrorIs(t, err, circulation.ErrFineAlreadyPaid)
}

func Test_MarkFinePaid_FailsForUnknownFine(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// act
	_, err := engine.MarkFinePaid(ctx, helper.GivenUniqueID(t))

	// assert
	assert.ErrorIs(t, err, circulation.ErrFineNotFound)
}

func Test_Restock_RaisesBothCopyCounts(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 2)
	helper.GivenOpenBorrowing(t, ctx, engine, member.ID, book.ID)

	// act
	restocked, err := engine.Restock(ctx, book.ID, 3)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 5, restocked.TotalCopies)
	assert.Equal(t, 4, restocked.AvailableCopies)
}

func Test_Restock_RejectsNonPositiveDelta(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)

	// act
	_, err := engine.Restock(ctx, book.ID, 0)

	// assert
	assert.ErrorIs(t, err, circulation.ErrInvalidRestockDelta)
}

func Test_Restock_FailsForUnknownBook(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// act
	_, err := engine.Restock(ctx, helper.GivenUniqueID(t), 2)

	// assert
	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

func Test_RegisterMember_ProvisionsMemberWithAccount(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// act
	member, account, err := engine.RegisterMember(ctx, postgresengine.Registration{
		FirstName: "Nora",
		LastName:  "Okafor",
		Email:     "nora.okafor@example.com",
		Password:  "plenty-long-password",
	})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.MembershipActive, member.Status)
	assert.NotEmpty(t, member.MembershipNumber)
	assert.NotEqual(t, "plenty-long-password", member.PasswordHash)
	assert.Equal(t, member.ID, account.MemberID)
	assert.True(t, account.Active)

	found, getErr := engine.GetMemberByEmail(ctx, "nora.okafor@example.com")
	assert.NoError(t, getErr)
	assert.Equal(t, member.ID, found.ID)
}

func Test_RegisterMember_RejectsDuplicateEmail(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	registration := postgresengine.Registration{
		FirstName: "Nora",
		LastName:  "Okafor",
		Email:     "nora.okafor@example.com",
		Password:  "plenty-long-password",
	}

	_, _, firstErr := engine.RegisterMember(ctx, registration)
	assert.NoError(t, firstErr)

	// act
	_, _, err := engine.RegisterMember(ctx, registration)

	// assert
	assert.ErrorIs(t, err, circulation.ErrEmailAlreadyRegistered)
}

func Test_SetMembershipStatus_RefusesDeactivationWithOpenBorrowings(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	borrowing := helper.GivenOpenBorrowing(t, ctx, engine, member.ID, book.ID)

	// act
	_, err := engine.SetMembershipStatus(ctx, member.ID, circulation.MembershipInactive)

	// assert
	assert.ErrorIs(t, err, circulation.ErrMemberHasOpenBorrowings)

	// deactivation works once the book is back
	_, _, returnErr := engine.Return(ctx, borrowing.ID)
	assert.NoError(t, returnErr)

	deactivated, err := engine.SetMembershipStatus(ctx, member.ID, circulation.MembershipInactive)
	assert.NoError(t, err)
	assert.Equal(t, circulation.MembershipInactive, deactivated.Status)
}

func Test_OverdueBorrowings_ListsOnlyOpenOverdueOnes(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	overdueBook := helper.GivenBookWithCopies(t, ctx, engine, 1)
	currentBook := helper.GivenBookWithCopies(t, ctx, engine, 1)
	dueDate := time.Now().UTC().AddDate(0, 0, -2)

	overdueBorrowing, overdueErr := engine.CheckOut(ctx, member.ID, overdueBook.ID, postgresengine.WithDueDate(dueDate))
	assert.NoError(t, overdueErr)
	helper.GivenOpenBorrowing(t, ctx, engine, member.ID, currentBook.ID)

	// act
	overdue, err := engine.OverdueBorrowings(ctx)

	// assert
	assert.NoError(t, err)
	assert.Len(t, overdue, 1)
	assert.Equal(t, overdueBorrowing.ID, overdue[0].ID)
}

func Test_AuditTrail_RecordsCheckoutAndReturn(t *testing.T) {
	// setup
	ctx, wrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()
	engine := wrapper.GetEngine()

	// arrange
	member := helper.GivenActiveMember(t, ctx, engine)
	book := helper.GivenBookWithCopies(t, ctx, engine, 1)
	borrowing := helper.GivenOpenBorrowing(t, ctx, engine, member.ID, book.ID)

	_, _, returnErr := engine.Return(ctx, borrowing.ID)
	assert.NoError(t, returnErr)

	// act
	entries, err := engine.AuditTrail(ctx, 10)

	// assert
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 3, "registration, checkout and return must each leave a trail entry")
	assert.Equal(t, "book_returned", entries[0].EntryType, "newest entries come first")
}

func Test_NewEngine_RejectsNilConnections(t *testing.T) {
	// act
	_, pgxErr := postgresengine.NewEngineFromPGXPool(nil)
	_, sqlErr := postgresengine.NewEngineFromSQLDB(nil)
	_, sqlxErr := postgresengine.NewEngineFromSQLX(nil)

	// assert
	assert.ErrorIs(t, pgxErr, circulation.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlErr, circulation.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlxErr, circulation.ErrNilDatabaseConnection)
}
