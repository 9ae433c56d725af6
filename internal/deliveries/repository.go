package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solidariza/backend/internal/identifier"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/database"
)

// Repository is the distribution ledger.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a distribution repository bound to a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// LockPair serializes deliveries of one product to one beneficiary until the
// surrounding transaction ends.
func (r *Repository) LockPair(ctx context.Context, beneficiaryID, productID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		"delivery:"+beneficiaryID.String()+":"+productID.String())
	return err
}

// LastDeliveredSince row-locks the pair's distributions delivered after since
// and returns the latest delivery time, or nil.
func (r *Repository) LastDeliveredSince(ctx context.Context, beneficiaryID, productID uuid.UUID, since time.Time) (*time.Time, error) {
	const q = `SELECT delivered_at FROM distributions
		WHERE beneficiary_id = $1 AND product_id = $2 AND delivered_at > $3
		ORDER BY delivered_at DESC
		LIMIT 1
		FOR UPDATE`
	var at time.Time
	err := r.db.QueryRow(ctx, q, beneficiaryID, productID, since).Scan(&at)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &at, nil
}

// Insert writes a distribution. A violation of the monthly unique constraint
// is returned as *models.ConstraintError.
func (r *Repository) Insert(ctx context.Context, d *models.Distribution) error {
	const q = `INSERT INTO distributions (organization_id, beneficiary_id, product_id, period_month, delivered_by, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.db.QueryRow(ctx, q, d.OrganizationID, d.BeneficiaryID, d.ProductID, d.PeriodMonth, d.DeliveredBy, d.DeliveredAt).Scan(&d.ID)
	if constraint, ok := database.UniqueViolation(err); ok {
		return &models.ConstraintError{Constraint: constraint, Err: err}
	}
	return err
}

// ListForOrganization returns an organization's distributions, newest first.
func (r *Repository) ListForOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Distribution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT id, organization_id, beneficiary_id, product_id, period_month, delivered_by, delivered_at
		FROM distributions WHERE organization_id = $1
		ORDER BY delivered_at DESC
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Distribution
	for rows.Next() {
		var d models.Distribution
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.BeneficiaryID, &d.ProductID, &d.PeriodMonth, &d.DeliveredBy, &d.DeliveredAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// ExistsForIdentifierInMonth reports whether the beneficiary with the given
// identifier received any product in the month, in any organization.
func (r *Repository) ExistsForIdentifierInMonth(ctx context.Context, raw string, period time.Time) (bool, error) {
	ident := identifier.Normalize(raw)
	if ident == "" {
		return false, nil
	}
	const q = `SELECT EXISTS (
		SELECT 1 FROM distributions d
		INNER JOIN beneficiaries b ON b.id = d.beneficiary_id
		WHERE b.identifier = $1 AND d.period_month = $2)`
	var ok bool
	err := r.db.QueryRow(ctx, q, ident, models.MonthStart(period)).Scan(&ok)
	return ok, err
}
