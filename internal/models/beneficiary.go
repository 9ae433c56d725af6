package models

import (
	"time"

	"github.com/google/uuid"
)

// Beneficiary is a person receiving aid. Beneficiaries are global to the
// network; organizations reach them through Membership rows.
type Beneficiary struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    *uuid.UUID `json:"organization_id,omitempty"` // legacy, see Membership
	GuardianID        *uuid.UUID `json:"guardian_id,omitempty"`
	Name              string     `json:"name"`
	Identifier        string     `json:"identifier"`
	Document          string     `json:"document"`
	BirthDate         *time.Time `json:"birth_date,omitempty"`
	PostalCode        string     `json:"postal_code"`
	Address           string     `json:"address"`
	AddressNumber     string     `json:"address_number"`
	AddressComplement string     `json:"address_complement"`
	District          string     `json:"district"`
	City              string     `json:"city"`
	State             string     `json:"state"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
}

// AgeAt returns the beneficiary's age in whole years at t, or -1 when the
// birth date is unknown.
func (b *Beneficiary) AgeAt(t time.Time) int {
	if b.BirthDate == nil {
		return -1
	}
	bd := *b.BirthDate
	age := t.Year() - bd.Year()
	if t.Month() < bd.Month() || (t.Month() == bd.Month() && t.Day() < bd.Day()) {
		age--
	}
	return age
}

// Guardian is a responsible adult registered by an organization.
type Guardian struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Document       string    `json:"document"`
	Phone          string    `json:"phone"`
	CreatedAt      time.Time `json:"created_at"`
}
