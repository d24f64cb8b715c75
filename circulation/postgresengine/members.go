package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine/internal/adapters"
)

const (
	operationRegisterMember = "registerMember"
	operationSetStatus      = "setMembershipStatus"

	membershipNumberPrefix = "LIB"
)

var (
	ErrEmptyMemberName = errors.New("member first and last name must not be empty")
	ErrEmptyEmail      = errors.New("member email must not be empty")
	ErrWeakPassword    = errors.New("member password must be at least 8 characters")
	ErrHashingPassword = errors.New("hashing member password failed")
	ErrInvalidStatus   = errors.New("unknown membership status")
)

// Registration carries the input for RegisterMember. The plaintext password
// is hashed before anything touches the database and is never stored.
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	Password  string
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return ErrEmptyMemberName
	}

	if strings.TrimSpace(r.Email) == "" {
		return ErrEmptyEmail
	}

	if len(r.Password) < 8 {
		return ErrWeakPassword
	}

	return nil
}

// RegisterMember creates a member together with their login account in one
// transaction, so a member row without an account can never be observed.
// A duplicate email surfaces as circulation.ErrEmailAlreadyRegistered.
func (e *Engine) RegisterMember(ctx context.Context, registration Registration) (circulation.Member, circulation.Account, error) {
	start := time.Now()
	ctx, span := e.startSpan(ctx, operationRegisterMember)

	member, account, err := e.registerMember(ctx, registration)

	duration := time.Since(start)
	status := spanStatusFor(err)
	e.recordDuration(ctx, operationRegisterMember, status, duration)
	e.finishSpan(span, status)

	if err == nil {
		e.logOperation(ctx, operationRegisterMember,
			logAttrMemberID, member.ID.String(),
			logAttrDurationMS, e.toMilliseconds(duration))
	}

	return member, account, err
}

func (e *Engine) registerMember(ctx context.Context, registration Registration) (circulation.Member, circulation.Account, error) {
	if err := registration.validate(); err != nil {
		return circulation.Member{}, circulation.Account{}, err
	}

	passwordHash, hashErr := bcrypt.GenerateFromPassword([]byte(registration.Password), bcrypt.DefaultCost)
	if hashErr != nil {
		return circulation.Member{}, circulation.Account{}, errors.Join(ErrHashingPassword, hashErr)
	}

	now := e.clock.Now()
	memberID := uuid.New()

	member := circulation.Member{
		ID:               memberID,
		FirstName:        strings.TrimSpace(registration.FirstName),
		LastName:         strings.TrimSpace(registration.LastName),
		Email:            strings.ToLower(strings.TrimSpace(registration.Email)),
		Phone:            registration.Phone,
		Address:          registration.Address,
		MembershipNumber: membershipNumberFor(memberID),
		PasswordHash:     string(passwordHash),
		Status:           circulation.MembershipActive,
		JoinedAt:         now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	account := circulation.Account{
		ID:        uuid.New(),
		MemberID:  memberID,
		Username:  member.Email,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := e.beginTx(ctx)
	if err != nil {
		return circulation.Member{}, circulation.Account{}, err
	}
	defer e.rollback(ctx, tx)

	if err = e.insertMember(ctx, tx, member); err != nil {
		return circulation.Member{}, circulation.Account{}, err
	}

	if err = e.insertAccount(ctx, tx, account); err != nil {
		return circulation.Member{}, circulation.Account{}, err
	}

	err = e.appendAudit(ctx, tx, auditMemberRegistered, now, map[string]any{
		"member_id":         member.ID.String(),
		"membership_number": member.MembershipNumber,
	})
	if err != nil {
		return circulation.Member{}, circulation.Account{}, err
	}

	if err = e.commit(ctx, tx); err != nil {
		return circulation.Member{}, circulation.Account{}, err
	}

	e.logInfo(ctx, logMsgMemberRegistered, logAttrMemberID, member.ID.String())

	return member, account, nil
}

// membershipNumberFor derives a stable human-readable membership number from
// the member id.
func membershipNumberFor(memberID uuid.UUID) string {
	raw := strings.ReplaceAll(memberID.String(), "-", "")
	return fmt.Sprintf("%s-%s", membershipNumberPrefix, strings.ToUpper(raw[:12]))
}

func (e *Engine) insertMember(ctx context.Context, tx adapters.DBTx, member circulation.Member) error {
	stmt := builder().
		Insert(tableMembers).
		Rows(goqu.Record{
			colID:               member.ID.String(),
			colFirstName:        member.FirstName,
			colLastName:         member.LastName,
			colEmail:            member.Email,
			colPhone:            member.Phone,
			colAddress:          member.Address,
			colMembershipNumber: member.MembershipNumber,
			colPasswordHash:     member.PasswordHash,
			colStatus:           string(member.Status),
			colJoinedAt:         member.JoinedAt,
			colCreatedAt:        member.CreatedAt,
			colUpdatedAt:        member.UpdatedAt,
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := e.executeStatement(ctx, tx, sqlQuery, actionInsertMember); execErr != nil {
		if constraint, ok := adapters.UniqueViolation(execErr); ok && constraint == constraintMemberEmail {
			return circulation.ErrEmailAlreadyRegistered
		}

		return execErr
	}

	return nil
}

func (e *Engine) insertAccount(ctx context.Context, tx adapters.DBTx, account circulation.Account) error {
	stmt := builder().
		Insert(tableAccounts).
		Rows(goqu.Record{
			colID:        account.ID.String(),
			colMemberID:  account.MemberID.String(),
			colUsername:  account.Username,
			colActive:    account.Active,
			colCreatedAt: account.CreatedAt,
			colUpdatedAt: account.UpdatedAt,
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := e.executeStatement(ctx, tx, sqlQuery, actionInsertAccount); execErr != nil {
		return execErr
	}

	return nil
}

// SetMembershipStatus transitions a member between active, suspended and
// inactive. Deactivation is refused while the member still has open
// borrowings. The member's account active flag follows the membership state
// in the same transaction.
func (e *Engine) SetMembershipStatus(ctx context.Context, memberID uuid.UUID, status circulation.MembershipStatus) (circulation.Member, error) {
	start := time.Now()
	ctx, span := e.startSpan(ctx, operationSetStatus)

	member, err := e.setMembershipStatus(ctx, memberID, status)

	duration := time.Since(start)
	spanStatus := spanStatusFor(err)
	e.recordDuration(ctx, operationSetStatus, spanStatus, duration)
	e.finishSpan(span, spanStatus)

	if err == nil {
		e.logOperation(ctx, operationSetStatus,
			logAttrMemberID, memberID.String(),
			logAttrDurationMS, e.toMilliseconds(duration))
	}

	return member, err
}

func (e *Engine) setMembershipStatus(ctx context.Context, memberID uuid.UUID, status circulation.MembershipStatus) (circulation.Member, error) {
	if !status.IsValid() {
		return circulation.Member{}, ErrInvalidStatus
	}

	now := e.clock.Now()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return circulation.Member{}, err
	}
	defer e.rollback(ctx, tx)

	member, err := e.lockMemberRow(ctx, tx, memberID)
	if err != nil {
		return circulation.Member{}, err
	}

	if member.Status == status {
		return member, nil
	}

	if status == circulation.MembershipInactive {
		openCount, countErr := e.countOpenBorrowings(ctx, tx, memberID)
		if countErr != nil {
			return circulation.Member{}, countErr
		}

		if openCount > 0 {
			return circulation.Member{}, circulation.ErrMemberHasOpenBorrowings
		}
	}

	if err = e.updateMemberStatus(ctx, tx, memberID, status, now); err != nil {
		return circulation.Member{}, err
	}

	if err = e.updateAccountActive(ctx, tx, memberID, status == circulation.MembershipActive, now); err != nil {
		return circulation.Member{}, err
	}

	err = e.appendAudit(ctx, tx, auditStatusChanged, now, map[string]any{
		"member_id": memberID.String(),
		"from":      string(member.Status),
		"to":        string(status),
	})
	if err != nil {
		return circulation.Member{}, err
	}

	if err = e.commit(ctx, tx); err != nil {
		return circulation.Member{}, err
	}

	e.logInfo(ctx, logMsgStatusChanged,
		logAttrMemberID, memberID.String(),
		logAttrStatus, string(status))

	member.Status = status
	member.UpdatedAt = now

	return member, nil
}

func (e *Engine) countOpenBorrowings(ctx context.Context, runner rowQueryer, memberID uuid.UUID) (int64, error) {
	stmt := builder().
		From(tableBorrowings).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colMemberID).Eq(memberID.String()),
			goqu.C(colReturnedAt).IsNull(),
		)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return 0, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := e.executeQuery(ctx, runner, sqlQuery, actionQueryBorrowings)
	if queryErr != nil {
		return 0, queryErr
	}
	defer e.closeRows(ctx, rows)

	var count int64
	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			e.logError(ctx, logMsgScanRowFailed, scanErr)
			return 0, errors.Join(ErrScanningDBRowFailed, scanErr)
		}
	}

	return count, nil
}

func (e *Engine) updateMemberStatus(ctx context.Context, tx adapters.DBTx, memberID uuid.UUID, status circulation.MembershipStatus, now time.Time) error {
	stmt := builder().
		Update(tableMembers).
		Set(goqu.Record{
			colStatus:    string(status),
			colUpdatedAt: now,
		}).
		Where(goqu.C(colID).Eq(memberID.String()))

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := e.executeStatement(ctx, tx, sqlQuery, actionUpdateMember); execErr != nil {
		return execErr
	}

	return nil
}

func (e *Engine) updateAccountActive(ctx context.Context, tx adapters.DBTx, memberID uuid.UUID, active bool, now time.Time) error {
	stmt := builder().
		Update(tableAccounts).
		Set(goqu.Record{
			colActive:    active,
			colUpdatedAt: now,
		}).
		Where(goqu.C(colMemberID).Eq(memberID.String()))

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := e.executeStatement(ctx, tx, sqlQuery, actionUpdateAccount); execErr != nil {
		return execErr
	}

	return nil
}
