package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
)

// MemoryTenancyStore is an in-memory implementation of the tenancy
// repositories with the same write semantics as the Postgres ones: writes are
// serialized under a mutex, duplicate emails and second-VP inserts fail with
// the same domain errors. It backs tests and local tooling and is only ever
// constructed explicitly, never used as a runtime fallback.
type MemoryTenancyStore struct {
	mu       sync.RWMutex
	tenants  map[string]*domain.Tenant
	agencies map[string]*domain.Agency
	users    map[string]*domain.User
}

// NewMemoryTenancyStore creates an empty in-memory store
func NewMemoryTenancyStore() *MemoryTenancyStore {
	return &MemoryTenancyStore{
		tenants:  make(map[string]*domain.Tenant),
		agencies: make(map[string]*domain.Agency),
		users:    make(map[string]*domain.User),
	}
}

// Create stores a tenant
func (s *MemoryTenancyStore) Create(ctx context.Context, tenant *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

// GetByID retrieves a tenant by ID
func (s *MemoryTenancyStore) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Count returns the number of tenants
func (s *MemoryTenancyStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), nil
}

// List returns all tenants
func (s *MemoryTenancyStore) List(ctx context.Context) ([]*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Agencies returns a domain.AgencyRepository view of the store
func (s *MemoryTenancyStore) Agencies() domain.AgencyRepository {
	return (*memoryAgencyRepo)(s)
}

// Users returns a domain.UserRepository view of the store
func (s *MemoryTenancyStore) Users() domain.UserRepository {
	return (*memoryUserRepo)(s)
}

type memoryAgencyRepo MemoryTenancyStore

func (s *memoryAgencyRepo) Create(ctx context.Context, agency *domain.Agency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[agency.TenantID]; !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	agency.CreatedAt = now
	agency.UpdatedAt = now
	cp := *agency
	s.agencies[agency.ID] = &cp
	return nil
}

func (s *memoryAgencyRepo) GetByID(ctx context.Context, id string) (*domain.Agency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agencies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryAgencyRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Agency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Agency
	for _, a := range s.agencies {
		if a.TenantID == tenantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memoryUserRepo MemoryTenancyStore

// Create enforces email uniqueness and the one-VP-per-agency invariant under
// the store mutex, mirroring the database constraints: the check and the
// insert happen atomically with respect to other writers.
func (s *memoryUserRepo) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[user.TenantID]; !ok {
		return domain.ErrNotFound
	}
	if user.AgencyID != "" {
		if _, ok := s.agencies[user.AgencyID]; !ok {
			return domain.ErrNotFound
		}
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	if user.Role == domain.RoleVP {
		for _, existing := range s.users {
			if existing.Role == domain.RoleVP && existing.AgencyID == user.AgencyID && user.AgencyID != "" {
				return domain.ErrVPConflict
			}
		}
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memoryUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memoryUserRepo) Update(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for id, other := range s.users {
		if id != user.ID && strings.EqualFold(other.Email, user.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	existing.Email = user.Email
	existing.PasswordHash = user.PasswordHash
	existing.UpdatedAt = time.Now()
	user.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *memoryUserRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.User, error) {
	return s.list(func(u *domain.User) bool { return u.TenantID == tenantID })
}

func (s *memoryUserRepo) ListByAgency(ctx context.Context, agencyID string) ([]*domain.User, error) {
	return s.list(func(u *domain.User) bool { return u.AgencyID == agencyID })
}

func (s *memoryUserRepo) list(match func(*domain.User) bool) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.User
	for _, u := range s.users {
		if match(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
