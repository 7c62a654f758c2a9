package reports

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/scheduler"
)

// PostgresRecipientRepository lists report recipients from PostgreSQL
type PostgresRecipientRepository struct {
	db *sqlx.DB
}

// NewPostgresRecipientRepository creates a new recipient repository
func NewPostgresRecipientRepository(db *sqlx.DB) *PostgresRecipientRepository {
	return &PostgresRecipientRepository{db: db}
}

var _ scheduler.RecipientSource = (*PostgresRecipientRepository)(nil)

// ListRecipients returns one row per active user and owned company that has
// at least one emission source
func (r *PostgresRecipientRepository) ListRecipients(ctx context.Context) ([]*scheduler.Recipient, error) {
	query := `
		SELECT u.id AS user_id, u.email, u.name, c.id AS company_id, c.name AS company_name
		FROM users u
		JOIN companies c ON c.owner_id = u.id
		WHERE u.active
		  AND EXISTS (SELECT 1 FROM emission_sources s WHERE s.company_id = c.id)
		ORDER BY u.email, c.name
	`

	var recipients []*scheduler.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query); err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}
