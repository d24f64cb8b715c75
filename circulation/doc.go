// Package circulation provides the core domain model for a library
// circulation system: members, books, borrowings and fines, together with
// the policy constants and derived-field computations the borrowing engine
// is built on.
//
// This package is pure - it holds no database access and produces no side
// effects. The transactional borrowing engine lives in the postgresengine
// subpackage and is the only code path permitted to create or close a
// Borrowing and to move a Book's available copy count for checkout/return.
//
// Key types:
//   - Member, Book, Borrowing, Fine: the persisted entities
//   - Policy: borrowing period length and fine rate
//   - Money: monetary amounts in minor units
//   - Clock: the time source consumed by the engine, one read per operation
//
// All failure modes of the engine are exposed here as typed sentinel errors
// (ErrMemberNotFound, ErrBookNotAvailable, ErrConcurrencyConflict, ...) so
// that calling layers can map each to a stable external error code with
// errors.Is.
package circulation
