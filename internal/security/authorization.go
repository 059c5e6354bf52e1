package security

import (
	"log/slog"

	"github.com/yourorg/policydesk/internal/domain"
)

// Actor is the identity on whose behalf an account-management action runs,
// derived from verified session claims.
type Actor struct {
	UserID   string
	TenantID string
	AgencyID string
	Role     domain.Role
}

// creatableRoles maps an actor role to the roles it may create. Scope
// constraints (own tenant, own agency) are checked separately in
// CanCreateUser.
var creatableRoles = map[domain.Role][]domain.Role{
	domain.RoleTenantAdmin: {domain.RoleVP, domain.RoleAgent},
	domain.RoleVP:          {domain.RoleAgent},
	domain.RoleAgent:       {},
}

// AuthorizationPolicy decides whether an authenticated actor may perform an
// account-management action. It is a pure decision function: no storage
// access, no side effects beyond logging denials.
type AuthorizationPolicy struct {
	logger *slog.Logger
}

// NewAuthorizationPolicy creates a new authorization policy
func NewAuthorizationPolicy(logger *slog.Logger) *AuthorizationPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationPolicy{logger: logger}
}

// CanCreateUser returns nil if actor may create an account with targetRole
// under targetAgencyID (within targetTenantID), or a *domain.DeniedError
// describing why not.
//
//	TENANT_ADMIN  may create VP, AGENT   in any agency of its own tenant
//	VP            may create AGENT       in its own agency only
//	AGENT         may create nothing
//
// This check runs before the repository write; the repository's structural
// one-VP constraint remains the race-safe backstop.
func (p *AuthorizationPolicy) CanCreateUser(actor Actor, targetRole domain.Role, targetTenantID, targetAgencyID string) error {
	if targetTenantID != actor.TenantID {
		return p.deny(actor, targetRole, domain.Denied(domain.DenialCrossTenant,
			"cannot create accounts outside your tenant"))
	}

	allowed := false
	for _, r := range creatableRoles[actor.Role] {
		if r == targetRole {
			allowed = true
			break
		}
	}
	if !allowed {
		return p.deny(actor, targetRole, domain.Denied(domain.DenialRoleNotAllowed,
			string(actor.Role)+" may not create "+string(targetRole)+" accounts"))
	}

	if actor.Role == domain.RoleVP {
		if actor.AgencyID == "" {
			return p.deny(actor, targetRole, domain.Denied(domain.DenialNoAgency,
				"VP actor has no agency"))
		}
		if targetAgencyID != actor.AgencyID {
			return p.deny(actor, targetRole, domain.Denied(domain.DenialCrossAgency,
				"VP may only create accounts in their own agency"))
		}
	}

	return nil
}

// CanCreateAgency returns nil if the actor may create an agency under the
// given tenant. Only tenant admins manage agencies.
func (p *AuthorizationPolicy) CanCreateAgency(actor Actor, tenantID string) error {
	if tenantID != actor.TenantID {
		return p.deny(actor, "", domain.Denied(domain.DenialCrossTenant,
			"cannot create agencies outside your tenant"))
	}
	if actor.Role != domain.RoleTenantAdmin {
		return p.deny(actor, "", domain.Denied(domain.DenialRoleNotAllowed,
			string(actor.Role)+" may not create agencies"))
	}
	return nil
}

// CanListTenantAccounts returns nil if the actor may read account and agency
// listings scoped to the given tenant.
func (p *AuthorizationPolicy) CanListTenantAccounts(actor Actor, tenantID string) error {
	if tenantID != actor.TenantID {
		return p.deny(actor, "", domain.Denied(domain.DenialCrossTenant,
			"cannot list accounts outside your tenant"))
	}
	return nil
}

func (p *AuthorizationPolicy) deny(actor Actor, targetRole domain.Role, err *domain.DeniedError) error {
	p.logger.Warn("authorization denied",
		slog.String("actor_id", actor.UserID),
		slog.String("actor_role", string(actor.Role)),
		slog.String("target_role", string(targetRole)),
		slog.String("reason", string(err.Reason)),
	)
	return err
}
