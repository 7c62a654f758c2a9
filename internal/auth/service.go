package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
)

// Service handles accounts, sessions and API keys
type Service struct {
	repo   Repository
	tokens *TokenManager
	audit  audit.Recorder
	logger *zap.Logger
}

// NewService creates a new auth service
func NewService(repo Repository, tokens *TokenManager, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		audit:  recorder,
		logger: logger,
	}
}

// Tokens returns the token manager used for session middleware
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register creates a user with the default role
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	return s.CreateUser(ctx, req, RoleUser)
}

// CreateUser creates a user with the given role
func (s *Service) CreateUser(ctx context.Context, req *RegisterRequest, role Role) (*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}

// Login checks credentials and issues a session token
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// GetUser retrieves a user by id
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// GetUserByEmail retrieves a user by email, ignoring case and surrounding space
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// ListUsers returns every user
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.repo.ListUsers(ctx)
}

// AuthenticateAPIKey resolves an API key to an active user
func (s *Service) AuthenticateAPIKey(ctx context.Context, key string) (*User, error) {
	if key == "" {
		return nil, ErrInvalidAPIKey
	}

	user, err := s.repo.GetUserByAPIKeyHash(ctx, HashAPIKey(key))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	return user, nil
}

// IssueAPIKey replaces the API key of userID. actor is recorded in the audit
// log when it differs from the user.
func (s *Service) IssueAPIKey(ctx context.Context, actor string, userID uuid.UUID) (*APIKeyResponse, error) {
	key, hash, err := newAPIKey()
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetAPIKeyHash(ctx, userID, hash); err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionAPIKeyReset, actor, userID)
	s.logger.Info("API key issued", zap.String("user_id", userID.String()), zap.String("actor", actor))

	return &APIKeyResponse{UserID: userID, APIKey: key}, nil
}

// SetActive deactivates or reactivates a user
func (s *Service) SetActive(ctx context.Context, actor string, userID uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}

	action := audit.ActionUserDeactivated
	if active {
		action = audit.ActionUserReactivated
	}
	s.record(ctx, action, actor, userID)
	return nil
}

func (s *Service) record(ctx context.Context, action audit.Action, actor string, userID uuid.UUID) {
	if s.audit == nil {
		return
	}
	entry := audit.NewEntry(action, actor, nil, audit.JSONB{"user_id": userID.String()})
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("Failed to record audit entry", zap.String("action", string(action)), zap.Error(err))
	}
}
