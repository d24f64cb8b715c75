package helper

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine"
)

// GivenUniqueID returns a fresh time-ordered id for test data.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// GivenActiveMember registers a member with a unique email and returns it.
func GivenActiveMember(t testing.TB, ctx context.Context, engine *postgresengine.Engine) circulation.Member {
	member, _, err := engine.RegisterMember(ctx, postgresengine.Registration{
		FirstName: "Paula",
		LastName:  "Reader",
		Email:     fmt.Sprintf("paula.reader+%s@example.com", GivenUniqueID(t)),
		Password:  "correct-horse-battery",
	})
	assert.NoError(t, err, "error in arranging test data")

	return member
}

// GivenSuspendedMember registers a member and suspends them.
func GivenSuspendedMember(t testing.TB, ctx context.Context, engine *postgresengine.Engine) circulation.Member {
	member := GivenActiveMember(t, ctx, engine)

	suspended, err := engine.SetMembershipStatus(ctx, member.ID, circulation.MembershipSuspended)
	assert.NoError(t, err, "error in arranging test data")

	return suspended
}

// GivenBookWithCopies adds a book with the given number of copies.
func GivenBookWithCopies(t testing.TB, ctx context.Context, engine *postgresengine.Engine, copies int) circulation.Book {
	book, err := engine.AddBook(ctx, postgresengine.AddBookParams{
		ISBN:            "978-0-13-468599-1",
		Title:           "The Go Programming Language",
		Author:          "Donovan / Kernighan",
		Publisher:       "Addison-Wesley",
		PublicationYear: 2015,
		Copies:          copies,
		Language:        "en",
	})
	assert.NoError(t, err, "error in arranging test data")

	return book
}

// GivenOpenBorrowing checks a book out for a member and returns the borrowing.
func GivenOpenBorrowing(
	t testing.TB,
	ctx context.Context,
	engine *postgresengine.Engine,
	memberID uuid.UUID,
	bookID uuid.UUID,
) circulation.Borrowing {

	borrowing, err := engine.CheckOut(ctx, memberID, bookID)
	assert.NoError(t, err, "error in arranging test data")

	return borrowing
}
