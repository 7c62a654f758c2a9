package teams

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is a team member's role within one company
type Role string

const (
	RoleManager Role = "manager"
	RoleAnalyst Role = "analyst"
)

// Valid reports whether r is a known team role
func (r Role) Valid() bool {
	return r == RoleManager || r == RoleAnalyst
}

// Member is a user invited to work on a company
type Member struct {
	CompanyID uuid.UUID `json:"company_id" db:"company_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	InvitedBy uuid.UUID `json:"invited_by" db:"invited_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Task is a task or message sent between members of a company team
type Task struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CompanyID uuid.UUID `json:"company_id" db:"company_id"`
	From      uuid.UUID `json:"from" db:"from_user"`
	To        uuid.UUID `json:"to" db:"to_user"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// InviteRequest is the body of POST /teams/companies/:id/members
type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  Role   `json:"role" binding:"required"`
}

// TaskRequest is the body of POST /teams/companies/:id/tasks
type TaskRequest struct {
	To      uuid.UUID `json:"to" binding:"required"`
	Message string    `json:"message" binding:"required"`
}

// Errors
var (
	ErrInvalidRole = errors.New("team role must be manager or analyst")
	ErrNotMember   = errors.New("user is not a member of the company team")
	ErrEmptyTask   = errors.New("task message is required")
)
