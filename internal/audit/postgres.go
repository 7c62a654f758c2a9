package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// PostgresRecorder implements Recorder using PostgreSQL
type PostgresRecorder struct {
	db *sqlx.DB
}

// NewPostgresRecorder creates a new PostgreSQL audit recorder
func NewPostgresRecorder(db *sqlx.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_log (id, action, actor, company_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Action, entry.Actor, entry.CompanyID, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	var conditions []string
	var args []interface{}
	argCount := 0

	if filter.CompanyID != nil {
		argCount++
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", argCount))
		args = append(args, *filter.CompanyID)
	}
	if filter.Action != nil {
		argCount++
		conditions = append(conditions, fmt.Sprintf("action = $%d", argCount))
		args = append(args, *filter.Action)
	}
	if filter.Actor != "" {
		argCount++
		conditions = append(conditions, fmt.Sprintf("actor = $%d", argCount))
		args = append(args, filter.Actor)
	}

	query := `SELECT id, action, actor, company_id, details, created_at FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	argCount++
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, filter.limit())

	var entries []*Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
