package postgresengine

import (
	"context"
	"errors"
)

// schemaStatements is the DDL for the circulation schema. The CHECK
// constraints and unique indexes are the database-level backstop for the
// invariants the engine enforces in application logic - they are not the
// primary control flow, with one exception: the partial unique index
// borrowings_one_open_per_member_book is authoritative for the
// one-open-borrowing-per-(member,book) invariant.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id uuid PRIMARY KEY,
		first_name text NOT NULL,
		last_name text NOT NULL,
		email text NOT NULL,
		phone text NOT NULL DEFAULT '',
		address text NOT NULL DEFAULT '',
		membership_number text NOT NULL,
		password_hash text NOT NULL,
		status text NOT NULL DEFAULT 'active',
		joined_at date NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT members_email_unique UNIQUE (email),
		CONSTRAINT members_membership_number_unique UNIQUE (membership_number)
	)`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id uuid PRIMARY KEY,
		member_id uuid NOT NULL REFERENCES members (id),
		username text NOT NULL,
		active boolean NOT NULL DEFAULT true,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT accounts_one_per_member UNIQUE (member_id)
	)`,

	`CREATE TABLE IF NOT EXISTS books (
		id uuid PRIMARY KEY,
		isbn text NOT NULL DEFAULT '',
		title text NOT NULL,
		author text NOT NULL,
		publisher text NOT NULL DEFAULT '',
		publication_year integer NOT NULL DEFAULT 0,
		description text NOT NULL DEFAULT '',
		total_copies integer NOT NULL DEFAULT 1,
		available_copies integer NOT NULL DEFAULT 1,
		condition text NOT NULL DEFAULT 'excellent',
		language text NOT NULL DEFAULT 'English',
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT books_total_copies_nonnegative CHECK (total_copies >= 0),
		CONSTRAINT books_available_copies_nonnegative CHECK (available_copies >= 0),
		CONSTRAINT books_available_within_total CHECK (available_copies <= total_copies)
	)`,

	`CREATE TABLE IF NOT EXISTS borrowings (
		id uuid PRIMARY KEY,
		member_id uuid NOT NULL REFERENCES members (id),
		book_id uuid NOT NULL REFERENCES books (id),
		borrowed_at timestamptz NOT NULL,
		due_date date NOT NULL,
		returned_at timestamptz,
		notes text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS borrowings_one_open_per_member_book
		ON borrowings (member_id, book_id) WHERE returned_at IS NULL`,

	`CREATE INDEX IF NOT EXISTS borrowings_member_open_idx ON borrowings (member_id, returned_at)`,

	`CREATE INDEX IF NOT EXISTS borrowings_book_open_idx ON borrowings (book_id, returned_at)`,

	`CREATE INDEX IF NOT EXISTS borrowings_due_date_idx ON borrowings (due_date)`,

	`CREATE TABLE IF NOT EXISTS fines (
		id uuid PRIMARY KEY,
		borrowing_id uuid NOT NULL REFERENCES borrowings (id),
		amount_cents bigint NOT NULL,
		currency text NOT NULL DEFAULT 'USD',
		reason text NOT NULL,
		is_paid boolean NOT NULL DEFAULT false,
		paid_at timestamptz,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT fines_one_per_borrowing UNIQUE (borrowing_id),
		CONSTRAINT fines_amount_nonnegative CHECK (amount_cents >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS circulation_audit (
		id bigserial PRIMARY KEY,
		entry_type text NOT NULL,
		occurred_at timestamptz NOT NULL,
		payload jsonb NOT NULL
	)`,
}

// CreateSchema creates all circulation tables, indexes and constraint
// backstops if they do not exist yet. It is idempotent.
func (e *Engine) CreateSchema(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := e.db.Exec(ctx, statement); err != nil {
			e.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, statement)
			return errors.Join(ErrExecutingStatementFailed, err)
		}
	}

	return nil
}
