package companies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// Repository defines the interface for company and source data access
type Repository interface {
	// Companies
	CreateCompany(ctx context.Context, company *Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*Company, error)
	ListCompanies(ctx context.Context, ownerID *uuid.UUID) ([]*Company, error)
	DeleteCompany(ctx context.Context, id uuid.UUID) error

	// Emission sources
	ListSources(ctx context.Context, companyID uuid.UUID) ([]emissions.EmissionSource, error)
	AddSource(ctx context.Context, companyID uuid.UUID, source emissions.EmissionSource) error
	ReplaceSources(ctx context.Context, companyID uuid.UUID, sources []emissions.EmissionSource) error

	// Benchmarks
	ListSectorTotals(ctx context.Context, sector string) ([]float64, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// =====================================================
// Companies
// =====================================================

const companyColumns = `id, owner_id, name, sector, size, last_updated_at, created_at, updated_at`

func (r *PostgresRepository) CreateCompany(ctx context.Context, company *Company) error {
	query := `
		INSERT INTO companies (id, owner_id, name, sector, size, last_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		company.ID, company.OwnerID, company.Name, company.Sector, company.Size,
		company.LastUpdatedAt, company.CreatedAt, company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	var company Company
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`

	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

func (r *PostgresRepository) ListCompanies(ctx context.Context, ownerID *uuid.UUID) ([]*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies`
	var args []interface{}
	if ownerID != nil {
		query += ` WHERE owner_id = $1`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY name`

	var companies []*Company
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

func (r *PostgresRepository) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// =====================================================
// Emission sources
// =====================================================

func (r *PostgresRepository) ListSources(ctx context.Context, companyID uuid.UUID) ([]emissions.EmissionSource, error) {
	query := `
		SELECT id, company_id, position, source_type, emission, latitude, longitude, created_at
		FROM emission_sources
		WHERE company_id = $1
		ORDER BY position
	`

	var rows []SourceRow
	if err := r.db.SelectContext(ctx, &rows, query, companyID); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	sources := make([]emissions.EmissionSource, len(rows))
	for i, row := range rows {
		sources[i] = row.ToSource()
	}
	return sources, nil
}

func (r *PostgresRepository) AddSource(ctx context.Context, companyID uuid.UUID, source emissions.EmissionSource) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var position int
	err = tx.GetContext(ctx, &position,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM emission_sources WHERE company_id = $1`, companyID)
	if err != nil {
		return fmt.Errorf("failed to get next source position: %w", err)
	}

	if err := insertSource(ctx, tx, companyID, position, source); err != nil {
		return err
	}
	if err := touchCompany(ctx, tx, companyID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ReplaceSources(ctx context.Context, companyID uuid.UUID, sources []emissions.EmissionSource) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM emission_sources WHERE company_id = $1`, companyID); err != nil {
		return fmt.Errorf("failed to clear sources: %w", err)
	}

	for i, source := range sources {
		if err := insertSource(ctx, tx, companyID, i, source); err != nil {
			return err
		}
	}

	if err := touchCompany(ctx, tx, companyID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertSource(ctx context.Context, tx *sqlx.Tx, companyID uuid.UUID, position int, source emissions.EmissionSource) error {
	var lat, lon *float64
	if source.Location != nil {
		lat, lon = &source.Location.Lat, &source.Location.Lon
	}

	query := `
		INSERT INTO emission_sources (id, company_id, position, source_type, emission, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		uuid.New(), companyID, position, source.Type, source.Emission, lat, lon, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

func touchCompany(ctx context.Context, tx *sqlx.Tx, companyID uuid.UUID) error {
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE companies SET last_updated_at = $1, updated_at = $1 WHERE id = $2`, now, companyID)
	if err != nil {
		return fmt.Errorf("failed to update company timestamp: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// ListSectorTotals returns the total emissions of every company in a sector
// that has at least one source.
func (r *PostgresRepository) ListSectorTotals(ctx context.Context, sector string) ([]float64, error) {
	query := `
		SELECT SUM(s.emission)
		FROM companies c
		JOIN emission_sources s ON s.company_id = c.id
		WHERE c.sector = $1
		GROUP BY c.id
	`

	var totals []float64
	if err := r.db.SelectContext(ctx, &totals, query, sector); err != nil {
		return nil, fmt.Errorf("failed to list sector totals: %w", err)
	}
	return totals, nil
}
