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

// Constraint names from the init migration. The partial unique index over
// (agency_id) WHERE role = 'VP' is what makes the one-VP invariant race-safe:
// of two concurrent VP inserts for the same agency, Postgres rejects exactly
// one with a unique violation, which we map to domain.ErrVPConflict.
const (
	constraintEmailUnique = "users_email_key"
	constraintOneVPAgency = "users_one_vp_per_agency"
)

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user. Duplicate emails and second-VP inserts are
// detected by the database constraints, not by a pre-check, so concurrent
// requests cannot race past them.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, tenant_id, agency_id, role, email, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		user.ID,
		user.TenantID,
		nullString(user.AgencyID),
		string(user.Role),
		user.Email,
		user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if mapped := mapUserWriteError(err); mapped != nil {
			return mapped
		}
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, tenant_id, agency_id, role, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email, compared case-insensitively
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, tenant_id, agency_id, role, email, password_hash, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Update persists changes to an existing user. Tenant, agency, and role are
// fixed at creation; only email and credential are mutable.
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $1, password_hash = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query, user.Email, user.PasswordHash, user.ID).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if mapped := mapUserWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// ListByTenant lists all users for a tenant
func (r *PostgresUserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.User, error) {
	query := `
		SELECT id, tenant_id, agency_id, role, email, password_hash, created_at, updated_at
		FROM users
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	return r.listUsers(ctx, query, tenantID)
}

// ListByAgency lists all users attached to an agency
func (r *PostgresUserRepository) ListByAgency(ctx context.Context, agencyID string) ([]*domain.User, error) {
	query := `
		SELECT id, tenant_id, agency_id, role, email, password_hash, created_at, updated_at
		FROM users
		WHERE agency_id = $1
		ORDER BY created_at DESC
	`
	return r.listUsers(ctx, query, agencyID)
}

func (r *PostgresUserRepository) listUsers(ctx context.Context, query string, arg any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		r.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresUserRepository) scanUser(row rowScanner) (*domain.User, error) {
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUserRow(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var agencyID sql.NullString
	var role string
	err := row.Scan(
		&user.ID,
		&user.TenantID,
		&agencyID,
		&role,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.AgencyID = agencyID.String
	user.Role = domain.Role(role)
	return user, nil
}

// mapUserWriteError translates Postgres constraint violations on the users
// table into domain errors. Returns nil for errors it does not recognize.
func mapUserWriteError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code {
	case "23505": // unique_violation
		switch pqErr.Constraint {
		case constraintOneVPAgency:
			return domain.ErrVPConflict
		case constraintEmailUnique:
			return domain.ErrDuplicateEmail
		}
	case "23503": // foreign_key_violation: tenant or agency absent
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
