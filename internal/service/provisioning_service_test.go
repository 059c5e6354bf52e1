package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/repository"
	"github.com/yourorg/policydesk/internal/security"
	"github.com/yourorg/policydesk/internal/security/credentials"
)

func newProvisioningFixture(t *testing.T) (*ProvisioningService, *repository.MemoryTenancyStore) {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryTenancyStore()
	if err := store.Create(ctx, &domain.Tenant{ID: "t1", Name: "Tenant One"}); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if err := store.Create(ctx, &domain.Tenant{ID: "t2", Name: "Tenant Two"}); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	for _, a := range []*domain.Agency{
		{ID: "a1", TenantID: "t1", Name: "Agency One"},
		{ID: "a2", TenantID: "t1", Name: "Agency Two"},
		{ID: "b1", TenantID: "t2", Name: "Other Tenant Agency"},
	} {
		if err := store.Agencies().Create(ctx, a); err != nil {
			t.Fatalf("create agency %s: %v", a.ID, err)
		}
	}

	svc := NewProvisioningService(
		store,
		store.Agencies(),
		store.Users(),
		credentials.NewStore(4),
		security.NewAuthorizationPolicy(nil),
		nil,
	)
	return svc, store
}

var testAdmin = security.Actor{UserID: "u-admin", TenantID: "t1", Role: domain.RoleTenantAdmin}

func TestCreateUserAsTenantAdmin(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, testAdmin, CreateUserInput{
		AgencyID: "a1",
		Role:     domain.RoleVP,
		Email:    "VP@Acme.com",
		Password: "Sup3rSecret",
	})
	if err != nil {
		t.Fatalf("create VP failed: %v", err)
	}
	if user.TenantID != "t1" || user.AgencyID != "a1" || user.Role != domain.RoleVP {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.Email != "vp@acme.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if user.PasswordHash != "" {
		t.Fatalf("returned user must not carry the credential")
	}
}

func TestCreateUserSecondVPConflicts(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, testAdmin, CreateUserInput{
		AgencyID: "a1", Role: domain.RoleVP, Email: "vp1@acme.com", Password: "Sup3rSecret",
	}); err != nil {
		t.Fatalf("first VP failed: %v", err)
	}

	_, err := svc.CreateUser(ctx, testAdmin, CreateUserInput{
		AgencyID: "a1", Role: domain.RoleVP, Email: "vp2@acme.com", Password: "Sup3rSecret",
	})
	if !errors.Is(err, domain.ErrVPConflict) {
		t.Fatalf("expected ErrVPConflict, got %v", err)
	}
}

func TestCreateUserAsVP(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()
	vp := security.Actor{UserID: "u-vp", TenantID: "t1", AgencyID: "a1", Role: domain.RoleVP}

	// Own agency is fine
	if _, err := svc.CreateUser(ctx, vp, CreateUserInput{
		AgencyID: "a1", Role: domain.RoleAgent, Email: "agent@acme.com", Password: "Sup3rSecret",
	}); err != nil {
		t.Fatalf("VP creating agent in own agency failed: %v", err)
	}

	// Another agency in the same tenant is not
	_, err := svc.CreateUser(ctx, vp, CreateUserInput{
		AgencyID: "a2", Role: domain.RoleAgent, Email: "agent2@acme.com", Password: "Sup3rSecret",
	})
	de, ok := domain.IsDenied(err)
	if !ok || de.Reason != domain.DenialCrossAgency {
		t.Fatalf("expected cross-agency denial, got %v", err)
	}

	// VP may not mint another VP
	_, err = svc.CreateUser(ctx, vp, CreateUserInput{
		AgencyID: "a1", Role: domain.RoleVP, Email: "vp2@acme.com", Password: "Sup3rSecret",
	})
	de, ok = domain.IsDenied(err)
	if !ok || de.Reason != domain.DenialRoleNotAllowed {
		t.Fatalf("expected role denial, got %v", err)
	}
}

func TestCreateUserAsAgent(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()
	agent := security.Actor{UserID: "u-agent", TenantID: "t1", AgencyID: "a1", Role: domain.RoleAgent}

	_, err := svc.CreateUser(ctx, agent, CreateUserInput{
		AgencyID: "a1", Role: domain.RoleAgent, Email: "new@acme.com", Password: "Sup3rSecret",
	})
	if _, ok := domain.IsDenied(err); !ok {
		t.Fatalf("expected denial for agent actor, got %v", err)
	}
}

func TestCreateUserCrossTenant(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()

	// The target agency resolves to tenant t2; the actor is in t1. The
	// response is indistinguishable from an unknown agency so foreign IDs
	// cannot be probed.
	_, err := svc.CreateUser(ctx, testAdmin, CreateUserInput{
		AgencyID: "b1", Role: domain.RoleAgent, Email: "spy@acme.com", Password: "Sup3rSecret",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign agency, got %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateUserInput
	}{
		{"missing email", CreateUserInput{AgencyID: "a1", Role: domain.RoleAgent, Password: "Sup3rSecret"}},
		{"malformed email", CreateUserInput{AgencyID: "a1", Role: domain.RoleAgent, Email: "not-an-email", Password: "Sup3rSecret"}},
		{"missing password", CreateUserInput{AgencyID: "a1", Role: domain.RoleAgent, Email: "x@acme.com"}},
		{"short password", CreateUserInput{AgencyID: "a1", Role: domain.RoleAgent, Email: "x@acme.com", Password: "short"}},
		{"missing agency", CreateUserInput{Role: domain.RoleAgent, Email: "x@acme.com", Password: "Sup3rSecret"}},
		{"bad role", CreateUserInput{AgencyID: "a1", Role: "SUPERUSER", Email: "x@acme.com", Password: "Sup3rSecret"}},
		{"tenant admin role", CreateUserInput{AgencyID: "a1", Role: domain.RoleTenantAdmin, Email: "x@acme.com", Password: "Sup3rSecret"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, testAdmin, tc.input)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCreateUserUnknownAgency(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, testAdmin, CreateUserInput{
		AgencyID: "a-missing", Role: domain.RoleAgent, Email: "x@acme.com", Password: "Sup3rSecret",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserConcurrentVPRace(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateUser(ctx, testAdmin, CreateUserInput{
				AgencyID: "a1",
				Role:     domain.RoleVP,
				Email:    fmt.Sprintf("vp%d@acme.com", i),
				Password: "Sup3rSecret",
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !errors.Is(err, domain.ErrVPConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one VP to win the race, got %d", successes)
	}
}

func TestCreateAgency(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()

	agency, err := svc.CreateAgency(ctx, testAdmin, "New Agency")
	if err != nil {
		t.Fatalf("create agency: %v", err)
	}
	if agency.TenantID != "t1" || agency.Name != "New Agency" {
		t.Fatalf("unexpected agency: %+v", agency)
	}

	vp := security.Actor{UserID: "u-vp", TenantID: "t1", AgencyID: "a1", Role: domain.RoleVP}
	if _, err := svc.CreateAgency(ctx, vp, "VP Agency"); err == nil {
		t.Fatalf("expected VP agency creation to be denied")
	}

	if _, err := svc.CreateAgency(ctx, testAdmin, "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
}

func TestListUsersStripsCredentials(t *testing.T) {
	svc, _ := newProvisioningFixture(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, testAdmin, CreateUserInput{
		AgencyID: "a1", Role: domain.RoleAgent, Email: "agent@acme.com", Password: "Sup3rSecret",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	users, err := svc.ListUsers(ctx, testAdmin)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].PasswordHash != "" {
		t.Fatalf("listing leaked a credential")
	}
}
