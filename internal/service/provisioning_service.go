package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/observability/metrics"
	"github.com/yourorg/policydesk/internal/security"
	"github.com/yourorg/policydesk/internal/security/credentials"
	"github.com/yourorg/policydesk/pkg/cache"
)

const agencyCacheTTL = 30 * time.Second

// minPasswordLength is account policy. The credential store itself only
// refuses empty or oversized input, so the floor is enforced here and in
// the change-password flow.
const minPasswordLength = 8

// ProvisioningService orchestrates account creation: validate input shape,
// hash the credential, check the authorization policy, persist. Every failure
// is terminal for the request; there are no internal retries. The repository
// constraints remain the race-safe backstop for the one-VP invariant.
type ProvisioningService struct {
	tenantRepo  domain.TenantRepository
	agencyRepo  domain.AgencyRepository
	userRepo    domain.UserRepository
	creds       *credentials.Store
	policy      *security.AuthorizationPolicy
	agencyCache *cache.Cache
	logger      *slog.Logger
}

// NewProvisioningService creates a new account provisioning service
func NewProvisioningService(
	tenantRepo domain.TenantRepository,
	agencyRepo domain.AgencyRepository,
	userRepo domain.UserRepository,
	creds *credentials.Store,
	policy *security.AuthorizationPolicy,
	logger *slog.Logger,
) *ProvisioningService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProvisioningService{
		tenantRepo:  tenantRepo,
		agencyRepo:  agencyRepo,
		userRepo:    userRepo,
		creds:       creds,
		policy:      policy,
		agencyCache: cache.New(),
		logger:      logger,
	}
}

// CreateUserInput is the structured request for a new account
type CreateUserInput struct {
	AgencyID string
	Role     domain.Role
	Email    string
	Password string
}

// CreateUser provisions a new account on behalf of actor. The returned user
// never carries the credential.
func (s *ProvisioningService) CreateUser(ctx context.Context, actor security.Actor, in CreateUserInput) (*domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: malformed email", domain.ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	if !in.Role.Valid() || in.Role == domain.RoleTenantAdmin {
		// Tenant admins are created only at bootstrap
		return nil, fmt.Errorf("%w: role must be VP or AGENT", domain.ErrInvalidInput)
	}
	if in.AgencyID == "" {
		return nil, fmt.Errorf("%w: agencyId is required", domain.ErrInvalidInput)
	}

	agency, err := s.getAgency(ctx, in.AgencyID)
	if err != nil {
		return nil, err
	}
	if agency.TenantID != actor.TenantID {
		// A foreign tenant's agency looks exactly like a missing one, so
		// agency IDs cannot be probed across tenants. The policy table
		// still denies cross-tenant creation if this is ever bypassed.
		return nil, domain.ErrNotFound
	}

	// Hash before the policy check so timing does not reveal which gate
	// rejected the request
	hash, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err.Error())
	}

	if err := s.policy.CanCreateUser(actor, in.Role, agency.TenantID, agency.ID); err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		TenantID:     agency.TenantID,
		AgencyID:     agency.ID,
		Role:         in.Role,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if err == domain.ErrVPConflict {
			metrics.ObserveVPConflict()
		}
		return nil, err
	}

	metrics.ObserveAccountCreated(string(in.Role))
	s.logger.Info("account created",
		slog.String("user_id", user.ID),
		slog.String("tenant_id", user.TenantID),
		slog.String("agency_id", user.AgencyID),
		slog.String("role", string(user.Role)),
		slog.String("actor_id", actor.UserID),
	)

	user.PasswordHash = ""
	return user, nil
}

// CreateAgency creates a new agency under the actor's tenant
func (s *ProvisioningService) CreateAgency(ctx context.Context, actor security.Actor, name string) (*domain.Agency, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	if err := s.policy.CanCreateAgency(actor, actor.TenantID); err != nil {
		return nil, err
	}

	agency := &domain.Agency{
		ID:       uuid.New().String(),
		TenantID: actor.TenantID,
		Name:     name,
	}
	if err := s.agencyRepo.Create(ctx, agency); err != nil {
		return nil, err
	}

	s.logger.Info("agency created",
		slog.String("agency_id", agency.ID),
		slog.String("tenant_id", agency.TenantID),
		slog.String("actor_id", actor.UserID),
	)
	return agency, nil
}

// ListUsers returns all users in the actor's tenant, credentials stripped
func (s *ProvisioningService) ListUsers(ctx context.Context, actor security.Actor) ([]*domain.User, error) {
	if err := s.policy.CanListTenantAccounts(actor, actor.TenantID); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListByTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		u.PasswordHash = ""
	}
	return users, nil
}

// ListAgencies returns all agencies in the actor's tenant
func (s *ProvisioningService) ListAgencies(ctx context.Context, actor security.Actor) ([]*domain.Agency, error) {
	if err := s.policy.CanListTenantAccounts(actor, actor.TenantID); err != nil {
		return nil, err
	}
	return s.agencyRepo.ListByTenant(ctx, actor.TenantID)
}

// getAgency resolves an agency through a short-lived cache. Agencies are
// immutable apart from the name, so a stale read here is harmless.
func (s *ProvisioningService) getAgency(ctx context.Context, id string) (*domain.Agency, error) {
	if v, ok := s.agencyCache.Get("agency:" + id); ok {
		return v.(*domain.Agency), nil
	}
	agency, err := s.agencyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.agencyCache.Set("agency:"+id, agency, agencyCacheTTL)
	return agency, nil
}
