package organizations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/database"
)

// Repository handles organization persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an organizations repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create creates an active organization.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		return models.NewValidationError("name is required")
	}
	org.IsActive = true
	const q = `INSERT INTO organizations (name, is_active) VALUES ($1, TRUE) RETURNING id, created_at`
	return r.db.QueryRow(ctx, q, org.Name).Scan(&org.ID, &org.CreatedAt)
}

// GetByID returns an organization by ID, or nil if missing.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, is_active, created_at FROM organizations WHERE id = $1`
	var org models.Organization
	err := r.db.QueryRow(ctx, q, id).Scan(&org.ID, &org.Name, &org.IsActive, &org.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

// List returns all organizations by name.
func (r *Repository) List(ctx context.Context) ([]models.Organization, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, is_active, created_at FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.IsActive, &org.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, org)
	}
	return list, rows.Err()
}

// ToggleActive flips the active flag and returns the updated organization,
// or nil if missing.
func (r *Repository) ToggleActive(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `UPDATE organizations SET is_active = NOT is_active WHERE id = $1
		RETURNING id, name, is_active, created_at`
	var org models.Organization
	err := r.db.QueryRow(ctx, q, id).Scan(&org.ID, &org.Name, &org.IsActive, &org.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

// cascadeSteps delete an organization's dependents leaf first. Distributions
// go before products because products are RESTRICT-referenced.
var cascadeSteps = []struct {
	name string
	sql  string
}{
	{"distributions", `DELETE FROM distributions WHERE organization_id = $1`},
	{"stock movements", `DELETE FROM stock_movements WHERE organization_id = $1`},
	{"attendances", `DELETE FROM attendances WHERE event_id IN (SELECT id FROM events WHERE organization_id = $1)`},
	{"events", `DELETE FROM events WHERE organization_id = $1`},
	{"products", `DELETE FROM products WHERE organization_id = $1`},
	{"memberships", `DELETE FROM organization_beneficiaries WHERE organization_id = $1`},
	{"guardians", `DELETE FROM guardians WHERE organization_id = $1`},
	{"superusers", `UPDATE users SET organization_id = NULL, updated_at = NOW() WHERE organization_id = $1 AND is_superuser`},
	{"collaborators", `DELETE FROM users WHERE organization_id = $1 AND NOT is_superuser`},
}

// deleteCascade removes the organization and its dependents. Run it inside a
// transaction.
func (r *Repository) deleteCascade(ctx context.Context, id uuid.UUID) (bool, error) {
	for _, step := range cascadeSteps {
		if _, err := r.db.Exec(ctx, step.sql, id); err != nil {
			return false, fmt.Errorf("delete %s: %w", step.name, err)
		}
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete organization: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PostgresStore adds transactional operations to Repository.
type PostgresStore struct {
	*Repository
	pool *pgxpool.Pool
}

// NewPostgresStore creates the organization store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Repository: NewRepository(pool), pool: pool}
}

// Delete removes the organization with everything it owns in one
// transaction. Superuser collaborators are detached, others deleted.
// It reports false if the organization did not exist.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var found bool
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		found, err = NewRepository(tx).deleteCascade(ctx, id)
		if err == nil && !found {
			return pgx.ErrNoRows
		}
		return err
	})
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return found, err
}
