// Package bootstrap seeds the initial tenant and admin account on first start.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/security/credentials"
)

// Config holds the bootstrap identity. The credentials are well-known and
// intended strictly for initial access; rotate them immediately via
// change-password in any real deployment.
type Config struct {
	TenantName    string
	AdminEmail    string
	AdminPassword string
}

// Run creates the default tenant and TENANT_ADMIN user if, and only if, no
// tenant exists yet. A second startup is a no-op.
func Run(
	ctx context.Context,
	cfg Config,
	tenantRepo domain.TenantRepository,
	userRepo domain.UserRepository,
	creds *credentials.Store,
	logger *slog.Logger,
) error {
	if logger == nil {
		logger = slog.Default()
	}

	count, err := tenantRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: failed to check tenants: %w", err)
	}
	if count > 0 {
		logger.Debug("bootstrap skipped: tenants already exist")
		return nil
	}

	tenant := &domain.Tenant{
		ID:   uuid.New().String(),
		Name: cfg.TenantName,
	}
	if err := tenantRepo.Create(ctx, tenant); err != nil {
		return fmt.Errorf("bootstrap: failed to create default tenant: %w", err)
	}

	hash, err := creds.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap: failed to hash admin password: %w", err)
	}

	admin := &domain.User{
		ID:           uuid.New().String(),
		TenantID:     tenant.ID,
		Role:         domain.RoleTenantAdmin,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("bootstrap: failed to create default admin: %w", err)
	}

	logger.Warn("bootstrap created default tenant and admin; rotate the admin password immediately",
		slog.String("tenant_id", tenant.ID),
		slog.String("admin_email", admin.Email),
	)
	return nil
}
