package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/database"
)

// Repository persists audit_logs rows.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an audit repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Insert writes one audit row.
func (r *Repository) Insert(ctx context.Context, l *models.AuditLog) error {
	const q = `INSERT INTO audit_logs (user_id, organization_id, action, model_name, object_id, description, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	return r.db.QueryRow(ctx, q, l.UserID, l.OrganizationID, l.Action, l.ModelName, l.ObjectID, l.Description, l.IPAddress, l.UserAgent, l.CreatedAt).
		Scan(&l.ID)
}

// ListByOrganization returns the newest audit rows of an organization.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT id, user_id, organization_id, action, model_name, object_id, description, ip_address, user_agent, created_at
		FROM audit_logs WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.OrganizationID, &l.Action, &l.ModelName, &l.ObjectID, &l.Description, &l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
