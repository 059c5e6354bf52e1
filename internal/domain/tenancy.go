package domain

import (
	"context"
	"time"
)

// Role determines which account-management actions a user may perform.
type Role string

const (
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleVP          Role = "VP"
	RoleAgent       Role = "AGENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTenantAdmin, RoleVP, RoleAgent:
		return true
	}
	return false
}

// Tenant is the top-level isolation boundary owning agencies and users
type Tenant struct {
	ID        string // UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Agency is an organizational unit under a tenant. The tenant reference is
// immutable after creation; an agency has at most one VP.
type Agency struct {
	ID        string // UUID
	TenantID  string // UUID of owning tenant, immutable
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User represents a system user
type User struct {
	ID           string // UUID
	TenantID     string // UUID of tenant this user belongs to
	AgencyID     string // UUID of agency, empty for tenant admins without one
	Role         Role
	Email        string // Unique across the system, compared case-insensitively
	PasswordHash string // Bcrypt hashed password (never returned in API)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TenantRepository defines data access for tenants
type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]*Tenant, error)
}

// AgencyRepository defines data access for agencies
type AgencyRepository interface {
	Create(ctx context.Context, agency *Agency) error
	GetByID(ctx context.Context, id string) (*Agency, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Agency, error)
}

// UserRepository defines data access for users. Create must enforce the
// one-VP-per-agency invariant and system-wide email uniqueness atomically at
// the storage layer: of two concurrent VP inserts for the same agency exactly
// one succeeds, the other fails with ErrVPConflict.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
	ListByAgency(ctx context.Context, agencyID string) ([]*User, error)
}
