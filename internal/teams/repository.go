package teams

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines the interface for team data access
type Repository interface {
	SaveMember(ctx context.Context, member *Member) error
	ListMembers(ctx context.Context, companyID uuid.UUID) ([]*Member, error)
	IsMember(ctx context.Context, companyID, userID uuid.UUID) (bool, error)

	CreateTask(ctx context.Context, task *Task) error
	ListTasks(ctx context.Context, companyID, userID uuid.UUID) ([]*Task, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveMember adds a member or changes the role of an existing one
func (r *PostgresRepository) SaveMember(ctx context.Context, member *Member) error {
	query := `
		INSERT INTO team_members (company_id, user_id, role, invited_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, user_id) DO UPDATE SET role = EXCLUDED.role, invited_by = EXCLUDED.invited_by
	`

	_, err := r.db.ExecContext(ctx, query,
		member.CompanyID, member.UserID, member.Role, member.InvitedBy, member.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save team member: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, companyID uuid.UUID) ([]*Member, error) {
	query := `
		SELECT m.company_id, m.user_id, u.email, u.name, m.role, m.invited_by, m.created_at
		FROM team_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.company_id = $1
		ORDER BY m.created_at
	`

	var members []*Member
	if err := r.db.SelectContext(ctx, &members, query, companyID); err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return members, nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, companyID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM team_members WHERE company_id = $1 AND user_id = $2)`

	if err := r.db.GetContext(ctx, &exists, query, companyID, userID); err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) CreateTask(ctx context.Context, task *Task) error {
	query := `
		INSERT INTO team_tasks (id, company_id, from_user, to_user, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.CompanyID, task.From, task.To, task.Message, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create team task: %w", err)
	}
	return nil
}

// ListTasks returns the tasks sent to or by userID, oldest first
func (r *PostgresRepository) ListTasks(ctx context.Context, companyID, userID uuid.UUID) ([]*Task, error) {
	query := `
		SELECT id, company_id, from_user, to_user, message, created_at
		FROM team_tasks
		WHERE company_id = $1 AND (to_user = $2 OR from_user = $2)
		ORDER BY created_at
	`

	var tasks []*Task
	if err := r.db.SelectContext(ctx, &tasks, query, companyID, userID); err != nil {
		return nil, fmt.Errorf("failed to list team tasks: %w", err)
	}
	return tasks, nil
}
