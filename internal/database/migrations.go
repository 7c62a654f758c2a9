package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// Migrations are applied in order. Plan, scenario and offset tables are
// managed by gorm in the planning store.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "users and companies",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'user',
				api_key_hash TEXT UNIQUE,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS companies (
				id UUID PRIMARY KEY,
				owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				sector TEXT NOT NULL,
				size TEXT NOT NULL,
				last_updated_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_companies_owner ON companies(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_companies_sector ON companies(sector)`,
		},
	},
	{
		Version:     2,
		Description: "emission sources",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS emission_sources (
				id UUID PRIMARY KEY,
				company_id UUID NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				source_type TEXT NOT NULL,
				emission DOUBLE PRECISION NOT NULL CHECK (emission >= 0),
				latitude DOUBLE PRECISION,
				longitude DOUBLE PRECISION,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (company_id, position)
			)`,
		},
	},
	{
		Version:     3,
		Description: "audit log",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS audit_log (
				id UUID PRIMARY KEY,
				action TEXT NOT NULL,
				actor TEXT NOT NULL,
				company_id UUID,
				details JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_log_company ON audit_log(company_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action)`,
		},
	},
	{
		Version:     4,
		Description: "team members and tasks",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS team_members (
				company_id UUID NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role TEXT NOT NULL,
				invited_by UUID NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (company_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS team_tasks (
				id UUID PRIMARY KEY,
				company_id UUID NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				from_user UUID NOT NULL,
				to_user UUID NOT NULL,
				message TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_team_tasks_company ON team_tasks(company_id, created_at)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		for _, stmt := range m.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		logger.Info("Applied migration", zap.Int("version", m.Version), zap.String("description", m.Description))
	}
	return nil
}
