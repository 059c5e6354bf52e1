package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/observability/metrics"
	"github.com/yourorg/policydesk/internal/security/auth"
	"github.com/yourorg/policydesk/internal/security/credentials"
)

// AuthService handles authentication operations
type AuthService struct {
	userRepo     domain.UserRepository
	creds        *credentials.Store
	tokenManager *auth.TokenManager
	sessionTTL   time.Duration
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo domain.UserRepository,
	creds *credentials.Store,
	tokenManager *auth.TokenManager,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		userRepo:     userRepo,
		creds:        creds,
		tokenManager: tokenManager,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	UserID    string      `json:"userId"`
	TenantID  string      `json:"tenantId"`
	AgencyID  string      `json:"agencyId,omitempty"`
	Role      domain.Role `json:"role"`
	Email     string      `json:"email"`
	Token     string      `json:"token"`
	ExpiresIn int         `json:"expiresIn"` // seconds
	TokenType string      `json:"tokenType"`
}

// ErrInvalidCredentials covers both unknown email and wrong password so the
// response cannot be used for user enumeration.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Login authenticates a user and issues a session token carrying the minimal
// claim set
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Info("login attempt with non-existent email", slog.String("email", email))
		metrics.ObserveLogin("unknown_email")
		return nil, ErrInvalidCredentials
	}

	if !s.creds.Verify(password, user.PasswordHash) {
		s.logger.Info("login failed with wrong password", slog.String("email", email))
		metrics.ObserveLogin("bad_password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenManager.Issue(user.ID, user.TenantID, user.AgencyID, user.Role, s.sessionTTL)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("error", err.Error()))
		return nil, errors.New("failed to issue token")
	}

	metrics.ObserveLogin("success")
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("tenant_id", user.TenantID),
		slog.String("role", string(user.Role)),
	)

	return &LoginResult{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		AgencyID:  user.AgencyID,
		Role:      user.Role,
		Email:     user.Email,
		Token:     token,
		ExpiresIn: int(s.sessionTTL.Seconds()),
		TokenType: "Bearer",
	}, nil
}

// ChangePassword changes a user's password after verifying the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return domain.ErrNotFound
	}

	if !s.creds.Verify(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.creds.Hash(newPassword)
	if err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}

	user.PasswordHash = hash
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update user password", slog.String("error", err.Error()))
		return errors.New("failed to change password")
	}

	s.logger.Info("user changed password", slog.String("user_id", userID))
	return nil
}
