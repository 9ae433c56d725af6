package membership

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solidariza/backend/internal/identifier"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/database"
)

const beneficiaryColumns = `b.id, b.organization_id, b.guardian_id, b.name, b.identifier, b.document, b.birth_date,
	b.postal_code, b.address, b.address_number, b.address_complement, b.district, b.city, b.state, b.active, b.created_at`

// Repository handles memberships, beneficiaries, families and guardians.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a membership repository bound to a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// LinkBeneficiary links a beneficiary to an organization. Calling it again
// returns the existing link.
func (r *Repository) LinkBeneficiary(ctx context.Context, orgID, beneficiaryID uuid.UUID) (*models.Membership, error) {
	const ins = `INSERT INTO organization_beneficiaries (organization_id, beneficiary_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, beneficiary_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, ins, orgID, beneficiaryID); err != nil {
		return nil, err
	}
	const sel = `SELECT id, organization_id, beneficiary_id, created_at
		FROM organization_beneficiaries WHERE organization_id = $1 AND beneficiary_id = $2`
	var m models.Membership
	err := r.db.QueryRow(ctx, sel, orgID, beneficiaryID).Scan(&m.ID, &m.OrganizationID, &m.BeneficiaryID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// IsLinked reports whether the beneficiary belongs to the organization.
func (r *Repository) IsLinked(ctx context.Context, orgID, beneficiaryID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM organization_beneficiaries WHERE organization_id = $1 AND beneficiary_id = $2)`
	var ok bool
	err := r.db.QueryRow(ctx, q, orgID, beneficiaryID).Scan(&ok)
	return ok, err
}

// CreateBeneficiary normalizes the identifier and inserts the beneficiary.
// Identifiers are unique across the whole network.
func (r *Repository) CreateBeneficiary(ctx context.Context, b *models.Beneficiary) error {
	b.Name = strings.TrimSpace(b.Name)
	b.Identifier = identifier.Normalize(b.Identifier)
	if b.Name == "" {
		return models.NewValidationError("name is required")
	}
	if b.Identifier == "" {
		return models.NewValidationError("identifier is required")
	}
	const q = `INSERT INTO beneficiaries (organization_id, guardian_id, name, identifier, document, birth_date,
		postal_code, address, address_number, address_complement, district, city, state, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, b.OrganizationID, b.GuardianID, b.Name, b.Identifier, b.Document, b.BirthDate,
		b.PostalCode, b.Address, b.AddressNumber, b.AddressComplement, b.District, b.City, b.State, b.Active).
		Scan(&b.ID, &b.CreatedAt)
	if _, ok := database.UniqueViolation(err); ok {
		return models.NewValidationError("identifier already registered in the network")
	}
	return err
}

func scanBeneficiary(row pgx.Row) (*models.Beneficiary, error) {
	var b models.Beneficiary
	err := row.Scan(&b.ID, &b.OrganizationID, &b.GuardianID, &b.Name, &b.Identifier, &b.Document, &b.BirthDate,
		&b.PostalCode, &b.Address, &b.AddressNumber, &b.AddressComplement, &b.District, &b.City, &b.State, &b.Active, &b.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// GetBeneficiary returns a beneficiary by ID, or nil if missing.
func (r *Repository) GetBeneficiary(ctx context.Context, id uuid.UUID) (*models.Beneficiary, error) {
	return scanBeneficiary(r.db.QueryRow(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries b WHERE b.id = $1`, id))
}

// GetBeneficiaryByIdentifier looks up a beneficiary by raw identifier; the
// value is normalized first.
func (r *Repository) GetBeneficiaryByIdentifier(ctx context.Context, raw string) (*models.Beneficiary, error) {
	ident := identifier.Normalize(raw)
	if ident == "" {
		return nil, nil
	}
	return scanBeneficiary(r.db.QueryRow(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries b WHERE b.identifier = $1`, ident))
}

// ListForOrganization returns the beneficiaries linked to an organization.
func (r *Repository) ListForOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Beneficiary, error) {
	rows, err := r.db.Query(ctx, `SELECT `+beneficiaryColumns+`
		FROM beneficiaries b
		INNER JOIN organization_beneficiaries ob ON ob.beneficiary_id = b.id
		WHERE ob.organization_id = $1
		ORDER BY b.name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

// CreateFamily inserts an empty family.
func (r *Repository) CreateFamily(ctx context.Context, name string) (*models.Family, error) {
	f := &models.Family{Name: strings.TrimSpace(name)}
	err := r.db.QueryRow(ctx, `INSERT INTO families (name) VALUES ($1) RETURNING id, created_at`, f.Name).
		Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// AddFamilyMember places a beneficiary in a family. A beneficiary already in
// a family is rejected.
func (r *Repository) AddFamilyMember(ctx context.Context, m *models.FamilyMember) error {
	if m.Relation == "" {
		m.Relation = models.RelationSelf
	}
	if !m.Relation.Valid() {
		return models.NewValidationError("invalid relation %q", m.Relation)
	}
	const q = `INSERT INTO family_members (family_id, beneficiary_id, relation, is_guardian)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, m.FamilyID, m.BeneficiaryID, string(m.Relation), m.IsGuardian).Scan(&m.ID, &m.CreatedAt)
	if _, ok := database.UniqueViolation(err); ok {
		return models.NewValidationError("beneficiary already belongs to a family")
	}
	return err
}

// GetFamily returns a family with its members, or nil if missing.
func (r *Repository) GetFamily(ctx context.Context, id uuid.UUID) (*models.Family, error) {
	var f models.Family
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at FROM families WHERE id = $1`, id).Scan(&f.ID, &f.Name, &f.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, family_id, beneficiary_id, relation, is_guardian, created_at
		FROM family_members WHERE family_id = $1 ORDER BY is_guardian DESC, created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m models.FamilyMember
		var rel string
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.BeneficiaryID, &rel, &m.IsGuardian, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Relation = models.FamilyRelation(rel)
		f.Members = append(f.Members, m)
	}
	return &f, rows.Err()
}

// FamilyIDOf returns the family the beneficiary belongs to, or nil.
func (r *Repository) FamilyIDOf(ctx context.Context, beneficiaryID uuid.UUID) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT family_id FROM family_members WHERE beneficiary_id = $1`, beneficiaryID).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

// CreateGuardian validates the document and inserts the guardian.
func (r *Repository) CreateGuardian(ctx context.Context, g *models.Guardian) error {
	if err := NormalizeGuardian(g); err != nil {
		return err
	}
	const q = `INSERT INTO guardians (organization_id, name, document, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, q, g.OrganizationID, g.Name, g.Document, g.Phone).Scan(&g.ID, &g.CreatedAt)
}
