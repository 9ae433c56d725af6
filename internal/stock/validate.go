package stock

import (
	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/models"
)

// ValidateMovement checks a movement before it is written. It has no side effects.
func ValidateMovement(orgID uuid.UUID, product *models.Product, kind models.MovementKind, quantity int64) error {
	if product == nil {
		return models.NewValidationError("product is required")
	}
	if product.OrganizationID != orgID {
		return models.NewValidationError("product belongs to another organization")
	}
	if kind != models.MovementIn && kind != models.MovementOut {
		return models.NewValidationError("invalid movement kind %q", kind)
	}
	if quantity <= 0 {
		return models.NewValidationError("quantity must be greater than zero")
	}
	return nil
}
