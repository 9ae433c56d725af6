package membership

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solidariza/backend/internal/identifier"
	"github.com/solidariza/backend/internal/models"
)

// adultAge is the age from which a beneficiary may register without a holder.
const adultAge = 18

// RegisterInput is a new beneficiary plus its family placement.
type RegisterInput struct {
	Beneficiary         models.Beneficiary
	HolderID            *uuid.UUID
	IsFamilyResponsible bool
}

// familyPlan says how a new beneficiary joins a family.
type familyPlan struct {
	create   bool
	name     string
	holderID *uuid.UUID
	relation models.FamilyRelation
	guardian bool
}

// planFamily decides the family placement. Minors need a holder and join
// the holder's family as CHILD; a self-declared responsible adult starts a
// family as SELF.
func planFamily(b *models.Beneficiary, now time.Time, holderID *uuid.UUID, responsible bool) (familyPlan, error) {
	age := b.AgeAt(now)
	if age >= 0 && age < adultAge {
		if holderID == nil {
			return familyPlan{}, models.NewValidationError("a minor requires a family holder")
		}
		return familyPlan{create: true, name: "Family of " + b.Name, holderID: holderID, relation: models.RelationChild}, nil
	}
	if responsible {
		return familyPlan{create: true, name: b.Name, relation: models.RelationSelf, guardian: true}, nil
	}
	return familyPlan{}, nil
}

// NormalizeGuardian trims fields and validates an 11-digit document as a
// national ID, storing it digit-only.
func NormalizeGuardian(g *models.Guardian) error {
	g.Name = strings.TrimSpace(g.Name)
	g.Phone = strings.TrimSpace(g.Phone)
	if g.Name == "" {
		return models.NewValidationError("guardian name is required")
	}
	if g.Document == "" {
		return nil
	}
	digits := identifier.OnlyDigits(g.Document)
	if len(digits) == 11 {
		if !identifier.IsValidNationalID(digits) {
			return models.NewValidationError("invalid national ID")
		}
		g.Document = digits
	}
	return nil
}

// Registry registers beneficiaries and their families atomically.
type Registry struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRegistry creates a beneficiary registry.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool, now: time.Now}
}

// Register creates the beneficiary, places it in a family when required and
// links it to orgID, all in one transaction.
func (s *Registry) Register(ctx context.Context, orgID uuid.UUID, in RegisterInput) (*models.Beneficiary, error) {
	b := in.Beneficiary
	b.Active = true
	plan, err := planFamily(&b, s.now(), in.HolderID, in.IsFamilyResponsible)
	if err != nil {
		return nil, err
	}
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		repo := NewRepository(tx)
		if err := repo.CreateBeneficiary(ctx, &b); err != nil {
			return err
		}
		if plan.create {
			if err := placeInFamily(ctx, repo, &b, plan); err != nil {
				return err
			}
		}
		_, err := repo.LinkBeneficiary(ctx, orgID, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func placeInFamily(ctx context.Context, repo *Repository, b *models.Beneficiary, plan familyPlan) error {
	if plan.holderID == nil {
		f, err := repo.CreateFamily(ctx, plan.name)
		if err != nil {
			return err
		}
		return repo.AddFamilyMember(ctx, &models.FamilyMember{FamilyID: f.ID, BeneficiaryID: b.ID, Relation: plan.relation, IsGuardian: plan.guardian})
	}
	holder, err := repo.GetBeneficiary(ctx, *plan.holderID)
	if err != nil {
		return err
	}
	if holder == nil {
		return models.NewValidationError("family holder not found")
	}
	familyID, err := repo.FamilyIDOf(ctx, holder.ID)
	if err != nil {
		return err
	}
	if familyID == nil {
		f, err := repo.CreateFamily(ctx, plan.name)
		if err != nil {
			return err
		}
		if err := repo.AddFamilyMember(ctx, &models.FamilyMember{FamilyID: f.ID, BeneficiaryID: holder.ID, Relation: models.RelationSelf, IsGuardian: true}); err != nil {
			return err
		}
		familyID = &f.ID
	}
	return repo.AddFamilyMember(ctx, &models.FamilyMember{FamilyID: *familyID, BeneficiaryID: b.ID, Relation: plan.relation})
}

// CreateFamilyInput creates a family from existing beneficiaries.
type CreateFamilyInput struct {
	Name      string
	HolderID  *uuid.UUID
	MemberIDs []uuid.UUID
}

// CreateFamily creates a family with an optional holder (SELF, guardian)
// and other members (OTHER). The name defaults to the holder's name.
func (s *Registry) CreateFamily(ctx context.Context, in CreateFamilyInput) (*models.Family, error) {
	var family *models.Family
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		repo := NewRepository(tx)
		name := strings.TrimSpace(in.Name)
		var holder *models.Beneficiary
		if in.HolderID != nil {
			var err error
			if holder, err = repo.GetBeneficiary(ctx, *in.HolderID); err != nil {
				return err
			}
			if holder == nil {
				return models.NewValidationError("family holder not found")
			}
			if name == "" {
				name = holder.Name
			}
		}
		f, err := repo.CreateFamily(ctx, name)
		if err != nil {
			return err
		}
		if holder != nil {
			if err := repo.AddFamilyMember(ctx, &models.FamilyMember{FamilyID: f.ID, BeneficiaryID: holder.ID, Relation: models.RelationSelf, IsGuardian: true}); err != nil {
				return err
			}
		}
		for _, id := range in.MemberIDs {
			if in.HolderID != nil && id == *in.HolderID {
				continue
			}
			b, err := repo.GetBeneficiary(ctx, id)
			if err != nil {
				return err
			}
			if b == nil {
				continue
			}
			if err := repo.AddFamilyMember(ctx, &models.FamilyMember{FamilyID: f.ID, BeneficiaryID: b.ID, Relation: models.RelationOther}); err != nil {
				return err
			}
		}
		family, err = repo.GetFamily(ctx, f.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return family, nil
}
