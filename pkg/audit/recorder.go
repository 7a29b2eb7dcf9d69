package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meridianhq/meridian/pkg/contextkeys"
	"github.com/meridianhq/meridian/pkg/observability"
)

// Recorder writes audit events
type Recorder interface {
	Record(ctx context.Context, accountID *int64, action Action, outcome Outcome, detail string)
}

// SQLRecorder persists events to the audit_events table. Write failures
// are logged and swallowed.
type SQLRecorder struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSQLRecorder creates a database-backed recorder
func NewSQLRecorder(db *sql.DB, logger *observability.Logger) *SQLRecorder {
	return &SQLRecorder{db: db, logger: logger}
}

// Record writes one event. The request id is pulled from the context.
func (r *SQLRecorder) Record(ctx context.Context, accountID *int64, action Action, outcome Outcome, detail string) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (account_id, action, outcome, detail, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		accountID, string(action), string(outcome), detail, contextkeys.RequestID(ctx), time.Now(),
	)
	if err != nil {
		r.logger.WithError(err).WithField("action", string(action)).
			Error("failed to write audit event")
	}
}

// Query filters for listing events
type Query struct {
	AccountID *int64
	Action    Action
	Limit     int
	Offset    int
}

// List returns events matching the query, newest first
func (r *SQLRecorder) List(ctx context.Context, q Query) ([]Event, error) {
	query := `SELECT id, account_id, action, outcome, detail, request_id, created_at FROM audit_events`
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where := ""
	if q.AccountID != nil {
		where = ` WHERE account_id = ` + next(*q.AccountID)
	}
	if q.Action != "" {
		if where == "" {
			where = ` WHERE`
		} else {
			where += ` AND`
		}
		where += ` action = ` + next(string(q.Action))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += where + ` ORDER BY created_at DESC, id DESC LIMIT ` + next(limit) + ` OFFSET ` + next(q.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		var accountID sql.NullInt64
		var detail, requestID sql.NullString
		if err := rows.Scan(&event.ID, &accountID, &event.Action, &event.Outcome, &detail, &requestID, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if accountID.Valid {
			id := accountID.Int64
			event.AccountID = &id
		}
		event.Detail = detail.String
		event.RequestID = requestID.String
		out = append(out, event)
	}
	return out, rows.Err()
}

// Prune deletes events older than the retention window and returns how
// many were removed.
func (r *SQLRecorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return result.RowsAffected()
}

// NopRecorder discards everything. Used when auditing is disabled.
type NopRecorder struct{}

// Record implements Recorder
func (NopRecorder) Record(context.Context, *int64, Action, Outcome, string) {}
