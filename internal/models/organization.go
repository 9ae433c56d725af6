package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a participating NGO (tenant root).
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a network-wide beneficiary to an organization.
type Membership struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	BeneficiaryID  uuid.UUID `json:"beneficiary_id"`
	CreatedAt      time.Time `json:"created_at"`
}
