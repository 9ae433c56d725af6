package stock

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/database"
)

// Repository handles products and the append-only stock ledger.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a stock repository bound to a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// CreateProduct inserts a product. Names are unique per organization.
func (r *Repository) CreateProduct(ctx context.Context, p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return models.NewValidationError("product name is required")
	}
	const q = `INSERT INTO products (organization_id, name, is_bundle)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, p.OrganizationID, p.Name, p.IsBundle).Scan(&p.ID, &p.CreatedAt)
	if _, ok := database.UniqueViolation(err); ok {
		return models.NewValidationError("product %q already exists in this organization", p.Name)
	}
	return err
}

// GetProduct returns a product by ID, or nil if it does not exist.
func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	const q = `SELECT id, organization_id, name, is_bundle, created_at FROM products WHERE id = $1`
	var p models.Product
	err := r.db.QueryRow(ctx, q, id).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.IsBundle, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListProducts returns an organization's products with their derived stock.
func (r *Repository) ListProducts(ctx context.Context, orgID uuid.UUID) ([]models.ProductStock, error) {
	const q = `SELECT p.id, p.organization_id, p.name, p.is_bundle, p.created_at,
		COALESCE(SUM(CASE WHEN m.kind = 'IN' THEN m.quantity ELSE 0 END), 0)
		- COALESCE(SUM(CASE WHEN m.kind = 'OUT' THEN m.quantity ELSE 0 END), 0)
		FROM products p
		LEFT JOIN stock_movements m ON m.product_id = p.id
		WHERE p.organization_id = $1
		GROUP BY p.id
		ORDER BY p.name`
	rows, err := r.db.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ProductStock
	for rows.Next() {
		var ps models.ProductStock
		if err := rows.Scan(&ps.ID, &ps.OrganizationID, &ps.Name, &ps.IsBundle, &ps.CreatedAt, &ps.Stock); err != nil {
			return nil, err
		}
		list = append(list, ps)
	}
	return list, rows.Err()
}

// RecordMovement validates and appends a movement to the ledger.
func (r *Repository) RecordMovement(ctx context.Context, orgID uuid.UUID, product *models.Product, kind models.MovementKind, quantity int64, reason string, actorID *uuid.UUID) (*models.StockMovement, error) {
	if err := ValidateMovement(orgID, product, kind, quantity); err != nil {
		return nil, err
	}
	m := &models.StockMovement{
		OrganizationID: orgID,
		ProductID:      product.ID,
		Kind:           kind,
		Quantity:       quantity,
		Reason:         reason,
		CreatedBy:      actorID,
	}
	if err := r.InsertMovement(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// InsertMovement writes an already validated movement.
func (r *Repository) InsertMovement(ctx context.Context, m *models.StockMovement) error {
	const q = `INSERT INTO stock_movements (organization_id, product_id, kind, quantity, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, q, m.OrganizationID, m.ProductID, string(m.Kind), m.Quantity, m.Reason, m.CreatedBy).
		Scan(&m.ID, &m.CreatedAt)
}

// CurrentStock returns sum(IN) - sum(OUT) for a product. The result is not
// clamped at zero.
func (r *Repository) CurrentStock(ctx context.Context, productID uuid.UUID) (int64, error) {
	const q = `SELECT
		COALESCE(SUM(CASE WHEN kind = 'IN' THEN quantity ELSE 0 END), 0)
		- COALESCE(SUM(CASE WHEN kind = 'OUT' THEN quantity ELSE 0 END), 0)
		FROM stock_movements WHERE product_id = $1`
	var stock int64
	err := r.db.QueryRow(ctx, q, productID).Scan(&stock)
	return stock, err
}

// LockProduct takes a row lock on the product until the surrounding
// transaction ends, serializing stock consumption for it.
func (r *Repository) LockProduct(ctx context.Context, productID uuid.UUID) error {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	return err
}

// ListMovements returns the latest movements of a product, newest first.
func (r *Repository) ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, organization_id, product_id, kind, quantity, reason, created_by, created_at
		FROM stock_movements WHERE product_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, q, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.StockMovement
	for rows.Next() {
		var m models.StockMovement
		var kind string
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.ProductID, &kind, &m.Quantity, &m.Reason, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = models.MovementKind(kind)
		list = append(list, m)
	}
	return list, rows.Err()
}
