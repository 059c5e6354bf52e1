package bootstrap

import (
	"context"
	"testing"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/repository"
	"github.com/yourorg/policydesk/internal/security/credentials"
)

func TestRunSeedsOnce(t *testing.T) {
	store := repository.NewMemoryTenancyStore()
	creds := credentials.NewStore(4)
	ctx := context.Background()
	cfg := Config{TenantName: "Default", AdminEmail: "admin@policydesk.local", AdminPassword: "changeme-now"}

	if err := Run(ctx, cfg, store, store.Users(), creds, nil); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	tenants, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	if len(tenants) != 1 {
		t.Fatalf("expected 1 tenant, got %d", len(tenants))
	}

	admin, err := store.Users().GetByEmail(ctx, "admin@policydesk.local")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if admin.Role != domain.RoleTenantAdmin {
		t.Fatalf("expected TENANT_ADMIN, got %s", admin.Role)
	}
	if admin.TenantID != tenants[0].ID {
		t.Fatalf("admin not bound to the seeded tenant")
	}
	if !creds.Verify("changeme-now", admin.PasswordHash) {
		t.Fatalf("admin credential does not verify")
	}

	// Second run is a no-op
	if err := Run(ctx, cfg, store, store.Users(), creds, nil); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	tenants, _ = store.List(ctx)
	if len(tenants) != 1 {
		t.Fatalf("expected bootstrap to be idempotent, got %d tenants", len(tenants))
	}
}

func TestRunSkipsWhenTenantsExist(t *testing.T) {
	store := repository.NewMemoryTenancyStore()
	ctx := context.Background()
	if err := store.Create(ctx, &domain.Tenant{ID: "t1", Name: "Existing"}); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	cfg := Config{TenantName: "Default", AdminEmail: "admin@policydesk.local", AdminPassword: "changeme-now"}
	if err := Run(ctx, cfg, store, store.Users(), credentials.NewStore(4), nil); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if _, err := store.Users().GetByEmail(ctx, "admin@policydesk.local"); err != domain.ErrNotFound {
		t.Fatalf("expected no admin to be created, got %v", err)
	}
}
