package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/auth"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
)

// UserDirectory resolves invited users
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
}

// CompanyDirectory resolves company owners
type CompanyDirectory interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*companies.Company, error)
}

// Service handles team membership and task messaging
type Service struct {
	repo      Repository
	users     UserDirectory
	companies CompanyDirectory
	audit     audit.Recorder
	notifier  notifications.Notifier
	logger    *zap.Logger
}

// NewService creates a new teams service. recorder and notifier may be nil.
func NewService(
	repo Repository,
	users UserDirectory,
	companyDirectory CompanyDirectory,
	recorder audit.Recorder,
	notifier notifications.Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		companies: companyDirectory,
		audit:     recorder,
		notifier:  notifier,
		logger:    logger,
	}
}

// Authorize reports whether userID may use the company's team. Admins and the
// owner always may, other users only once invited.
func (s *Service) Authorize(ctx context.Context, companyID, userID uuid.UUID, admin bool) error {
	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if admin || company.OwnerID == userID {
		return nil
	}

	member, err := s.repo.IsMember(ctx, companyID, userID)
	if err != nil {
		return err
	}
	if !member {
		return companies.ErrForbidden
	}
	return nil
}

// Invite adds the user with the given email to the company team, or changes
// their role when they are already a member
func (s *Service) Invite(ctx context.Context, inviterID, companyID uuid.UUID, req *InviteRequest) (*Member, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	member := &Member{
		CompanyID: companyID,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      req.Role,
		InvitedBy: inviterID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.SaveMember(ctx, member); err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionTeamInvite, inviterID, companyID, audit.JSONB{
		"user_id": user.ID.String(),
		"role":    string(req.Role),
	})
	s.logger.Info("Team member invited",
		zap.String("company_id", companyID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(req.Role)),
	)
	return member, nil
}

// Members lists the company team
func (s *Service) Members(ctx context.Context, companyID uuid.UUID) ([]*Member, error) {
	members, err := s.repo.ListMembers(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []*Member{}
	}
	return members, nil
}

// SendTask stores a task from one team participant to another. Senders may
// always address themselves.
func (s *Service) SendTask(ctx context.Context, companyID, fromID uuid.UUID, req *TaskRequest) (*Task, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyTask
	}

	if req.To != fromID {
		if err := s.Authorize(ctx, companyID, req.To, false); err != nil {
			if errors.Is(err, companies.ErrForbidden) {
				return nil, ErrNotMember
			}
			return nil, err
		}
	}

	task := &Task{
		ID:        uuid.New(),
		CompanyID: companyID,
		From:      fromID,
		To:        req.To,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionTeamTask, fromID, companyID, audit.JSONB{
		"task_id": task.ID.String(),
		"to":      task.To.String(),
	})
	alert := notifications.NewAlert(
		notifications.KindTeamTask,
		companyID,
		notifications.SeverityInfo,
		"New team task",
		message,
	).WithData("task_id", task.ID.String()).WithData("to", task.To.String()).WithData("from", fromID.String())
	notifications.SafeNotify(ctx, s.notifier, s.logger, alert)

	return task, nil
}

// Inbox lists the tasks sent to or by userID within the company
func (s *Service) Inbox(ctx context.Context, companyID, userID uuid.UUID) ([]*Task, error) {
	tasks, err := s.repo.ListTasks(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*Task{}
	}
	return tasks, nil
}

func (s *Service) record(ctx context.Context, action audit.Action, actor, companyID uuid.UUID, details audit.JSONB) {
	if s.audit == nil {
		return
	}
	id := companyID
	if err := s.audit.Record(ctx, audit.NewEntry(action, actor.String(), &id, details)); err != nil {
		s.logger.Warn("Failed to record audit entry", zap.String("action", string(action)), zap.Error(err))
	}
}
