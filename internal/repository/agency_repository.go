package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/yourorg/policydesk/internal/domain"
)

// PostgresAgencyRepository implements domain.AgencyRepository using PostgreSQL
type PostgresAgencyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAgencyRepository creates a new agency repository
func NewPostgresAgencyRepository(db *sql.DB, logger *slog.Logger) *PostgresAgencyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAgencyRepository{db: db, logger: logger}
}

// Create creates a new agency under its tenant. A missing tenant surfaces as
// domain.ErrNotFound via the foreign key. There is no update path: the tenant
// reference is immutable after creation.
func (r *PostgresAgencyRepository) Create(ctx context.Context, agency *domain.Agency) error {
	query := `
		INSERT INTO agencies (id, tenant_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, agency.ID, agency.TenantID, agency.Name).Scan(
		&agency.CreatedAt,
		&agency.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to create agency: %w", err)
	}
	return nil
}

// GetByID retrieves an agency by ID
func (r *PostgresAgencyRepository) GetByID(ctx context.Context, id string) (*domain.Agency, error) {
	a := &domain.Agency{}
	query := `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM agencies
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.TenantID, &a.Name, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agency: %w", err)
	}
	return a, nil
}

// ListByTenant lists all agencies for a tenant
func (r *PostgresAgencyRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Agency, error) {
	query := `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM agencies
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("failed to list agencies by tenant",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	defer rows.Close()

	var out []*domain.Agency
	for rows.Next() {
		a := &domain.Agency{}
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agency: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
