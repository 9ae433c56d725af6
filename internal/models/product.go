package models

import (
	"time"

	"github.com/google/uuid"
)

// Product belongs to one organization. Bundles are tracked like any other
// product.
type Product struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	IsBundle       bool      `json:"is_bundle"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProductStock is a product with its derived stock level.
type ProductStock struct {
	Product
	Stock int64 `json:"stock"`
}

// MovementKind is the direction of a stock movement.
type MovementKind string

const (
	MovementIn  MovementKind = "IN"
	MovementOut MovementKind = "OUT"
)

// StockMovement is an immutable ledger entry.
type StockMovement struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	ProductID      uuid.UUID    `json:"product_id"`
	Kind           MovementKind `json:"kind"`
	Quantity       int64        `json:"quantity"`
	Reason         string       `json:"reason"`
	CreatedBy      *uuid.UUID   `json:"created_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
