package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine/internal/adapters"
)

const (
	auditCheckedOut       = "book_checked_out"
	auditReturned         = "book_returned"
	auditFineCreated      = "fine_created"
	auditRestocked        = "book_restocked"
	auditMemberRegistered = "member_registered"
	auditStatusChanged    = "membership_status_changed"
	auditFinePaid         = "fine_paid"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditEntry is one immutable record in the circulation audit trail.
type AuditEntry struct {
	Sequence   int64
	EntryType  string
	OccurredAt time.Time
	Payload    []byte
}

// appendAudit writes one audit entry within the caller's transaction so the
// trail commits or rolls back together with the operation it records.
func (e *Engine) appendAudit(ctx context.Context, tx adapters.DBTx, entryType string, occurredAt time.Time, payload any) error {
	payloadJSON, marshalErr := jsonCodec.Marshal(payload)
	if marshalErr != nil {
		e.logError(ctx, logMsgMarshalPayloadFailed, marshalErr)
		return errors.Join(ErrMarshalingPayloadFailed, marshalErr)
	}

	stmt := builder().
		Insert(tableAudit).
		Rows(goqu.Record{
			colEntryType:  entryType,
			colOccurredAt: occurredAt,
			colPayload:    string(payloadJSON),
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, err := e.executeStatement(ctx, tx, sqlQuery, actionInsertAudit); err != nil {
		return err
	}

	return nil
}

// AuditTrail returns the most recent audit entries, newest first, capped at
// limit. A non-positive limit returns an empty slice.
func (e *Engine) AuditTrail(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		return []AuditEntry{}, nil
	}

	stmt := builder().
		From(tableAudit).
		Select(colID, colEntryType, colOccurredAt, colPayload).
		Order(goqu.C(colID).Desc()).
		Limit(uint(limit))

	return queryList(e, ctx, e.db, stmt, scanAuditEntry, actionQueryAudit)
}

func scanAuditEntry(rows adapters.DBRows) (AuditEntry, error) {
	var entry AuditEntry

	err := rows.Scan(&entry.Sequence, &entry.EntryType, &entry.OccurredAt, &entry.Payload)
	if err != nil {
		return AuditEntry{}, err
	}

	return entry, nil
}
