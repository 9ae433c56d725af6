package models

import (
	"time"

	"github.com/google/uuid"
)

// FamilyRelation is how a member relates to the family's holder.
type FamilyRelation string

const (
	RelationSelf   FamilyRelation = "SELF"
	RelationChild  FamilyRelation = "CHILD"
	RelationSpouse FamilyRelation = "SPOUSE"
	RelationOther  FamilyRelation = "OTHER"
)

// Valid reports whether r is a known relation.
func (r FamilyRelation) Valid() bool {
	switch r {
	case RelationSelf, RelationChild, RelationSpouse, RelationOther:
		return true
	}
	return false
}

// Family groups beneficiaries of one household.
type Family struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	Members   []FamilyMember `json:"members,omitempty"`
}

// FamilyMember places a beneficiary in a family. A beneficiary belongs to at
// most one family.
type FamilyMember struct {
	ID            uuid.UUID      `json:"id"`
	FamilyID      uuid.UUID      `json:"family_id"`
	BeneficiaryID uuid.UUID      `json:"beneficiary_id"`
	Relation      FamilyRelation `json:"relation"`
	IsGuardian    bool           `json:"is_guardian"`
	CreatedAt     time.Time      `json:"created_at"`
}
