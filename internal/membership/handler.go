package membership

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/audit"
	"github.com/solidariza/backend/internal/httperr"
	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/response"
)

// Store is the read and link side of the registry.
type Store interface {
	GetBeneficiary(ctx context.Context, id uuid.UUID) (*models.Beneficiary, error)
	GetBeneficiaryByIdentifier(ctx context.Context, raw string) (*models.Beneficiary, error)
	ListForOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Beneficiary, error)
	LinkBeneficiary(ctx context.Context, orgID, beneficiaryID uuid.UUID) (*models.Membership, error)
	IsLinked(ctx context.Context, orgID, beneficiaryID uuid.UUID) (bool, error)
	GetFamily(ctx context.Context, id uuid.UUID) (*models.Family, error)
	AddFamilyMember(ctx context.Context, m *models.FamilyMember) error
	CreateGuardian(ctx context.Context, g *models.Guardian) error
}

// Registrar performs the multi-row registrations.
type Registrar interface {
	Register(ctx context.Context, orgID uuid.UUID, in RegisterInput) (*models.Beneficiary, error)
	CreateFamily(ctx context.Context, in CreateFamilyInput) (*models.Family, error)
}

// Handler handles beneficiary, family and guardian endpoints.
type Handler struct {
	store     Store
	registrar Registrar
	audit     *audit.Recorder
}

// NewHandler creates a membership handler.
func NewHandler(store Store, registrar Registrar, recorder *audit.Recorder) *Handler {
	return &Handler{store: store, registrar: registrar, audit: recorder}
}

// CreateBeneficiaryRequest is the body for POST /beneficiaries.
type CreateBeneficiaryRequest struct {
	Name                string     `json:"name" binding:"required"`
	Identifier          string     `json:"identifier" binding:"required"`
	Document            string     `json:"document"`
	BirthDate           string     `json:"birth_date"`
	GuardianID          *uuid.UUID `json:"guardian_id"`
	PostalCode          string     `json:"postal_code"`
	Address             string     `json:"address"`
	AddressNumber       string     `json:"address_number"`
	AddressComplement   string     `json:"address_complement"`
	District            string     `json:"district"`
	City                string     `json:"city"`
	State               string     `json:"state"`
	HolderID            *uuid.UUID `json:"holder_id"`
	IsFamilyResponsible bool       `json:"is_family_responsible"`
}

// CreateBeneficiary handles POST /beneficiaries.
func (h *Handler) CreateBeneficiary(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	var body CreateBeneficiaryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and identifier required")
		return
	}
	b := models.Beneficiary{
		GuardianID:        body.GuardianID,
		Name:              body.Name,
		Identifier:        body.Identifier,
		Document:          body.Document,
		PostalCode:        body.PostalCode,
		Address:           body.Address,
		AddressNumber:     body.AddressNumber,
		AddressComplement: body.AddressComplement,
		District:          body.District,
		City:              body.City,
		State:             body.State,
	}
	if body.BirthDate != "" {
		bd, err := time.Parse(models.PeriodLayout, body.BirthDate)
		if err != nil {
			response.BadRequest(c, "invalid birth_date (YYYY-MM-DD)")
			return
		}
		b.BirthDate = &bd
	}
	created, err := h.registrar.Register(c.Request.Context(), orgID, RegisterInput{
		Beneficiary:         b,
		HolderID:            body.HolderID,
		IsFamilyResponsible: body.IsFamilyResponsible,
	})
	if err != nil {
		httperr.Write(c, err, "failed to create beneficiary")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "beneficiary_create", "Beneficiary", created.ID, created.Name))
	response.Created(c, created)
}

// ListBeneficiaries handles GET /beneficiaries.
func (h *Handler) ListBeneficiaries(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	list, err := h.store.ListForOrganization(c.Request.Context(), orgID)
	if err != nil {
		httperr.Write(c, err, "failed to list beneficiaries")
		return
	}
	if list == nil {
		list = []models.Beneficiary{}
	}
	response.OK(c, list)
}

// GetBeneficiary handles GET /beneficiaries/:id. Only linked beneficiaries
// are visible.
func (h *Handler) GetBeneficiary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid beneficiary id")
		return
	}
	ctx := c.Request.Context()
	orgID, _ := middleware.OrganizationID(c)
	linked, err := h.store.IsLinked(ctx, orgID, id)
	if err != nil {
		httperr.Write(c, err, "failed to load beneficiary")
		return
	}
	if !linked {
		response.NotFound(c, "beneficiary not found")
		return
	}
	b, err := h.store.GetBeneficiary(ctx, id)
	if err != nil {
		httperr.Write(c, err, "failed to load beneficiary")
		return
	}
	if b == nil {
		response.NotFound(c, "beneficiary not found")
		return
	}
	response.OK(c, b)
}

// LookupBeneficiary handles GET /beneficiaries/lookup?identifier=. It
// searches the whole network so an organization can link an existing
// person instead of registering a duplicate.
func (h *Handler) LookupBeneficiary(c *gin.Context) {
	b, err := h.store.GetBeneficiaryByIdentifier(c.Request.Context(), c.Query("identifier"))
	if err != nil {
		httperr.Write(c, err, "failed to look up beneficiary")
		return
	}
	if b == nil {
		response.NotFound(c, "beneficiary not found")
		return
	}
	orgID, _ := middleware.OrganizationID(c)
	linked, err := h.store.IsLinked(c.Request.Context(), orgID, b.ID)
	if err != nil {
		httperr.Write(c, err, "failed to look up beneficiary")
		return
	}
	response.OK(c, gin.H{"id": b.ID, "name": b.Name, "identifier": b.Identifier, "linked": linked})
}

// LinkBeneficiary handles POST /beneficiaries/:id/link.
func (h *Handler) LinkBeneficiary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid beneficiary id")
		return
	}
	ctx := c.Request.Context()
	b, err := h.store.GetBeneficiary(ctx, id)
	if err != nil {
		httperr.Write(c, err, "failed to link beneficiary")
		return
	}
	if b == nil {
		response.NotFound(c, "beneficiary not found")
		return
	}
	orgID, _ := middleware.OrganizationID(c)
	m, err := h.store.LinkBeneficiary(ctx, orgID, id)
	if err != nil {
		httperr.Write(c, err, "failed to link beneficiary")
		return
	}
	h.audit.Record(ctx, audit.FromRequest(c, "beneficiary_link", "Beneficiary", id, b.Name))
	response.OK(c, m)
}

// CreateFamilyRequest is the body for POST /families.
type CreateFamilyRequest struct {
	Name      string      `json:"name"`
	HolderID  *uuid.UUID  `json:"holder_id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// CreateFamily handles POST /families.
func (h *Handler) CreateFamily(c *gin.Context) {
	var body CreateFamilyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	f, err := h.registrar.CreateFamily(c.Request.Context(), CreateFamilyInput{
		Name:      body.Name,
		HolderID:  body.HolderID,
		MemberIDs: body.MemberIDs,
	})
	if err != nil {
		httperr.Write(c, err, "failed to create family")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "family_create", "Family", f.ID, f.Name))
	response.Created(c, f)
}

// GetFamily handles GET /families/:id.
func (h *Handler) GetFamily(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid family id")
		return
	}
	f, err := h.store.GetFamily(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, "failed to load family")
		return
	}
	if f == nil {
		response.NotFound(c, "family not found")
		return
	}
	response.OK(c, f)
}

// AddMemberRequest is the body for POST /families/:id/members.
type AddMemberRequest struct {
	BeneficiaryID uuid.UUID `json:"beneficiary_id" binding:"required"`
	Relation      string    `json:"relation"`
	IsGuardian    bool      `json:"is_guardian"`
}

// AddMember handles POST /families/:id/members.
func (h *Handler) AddMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid family id")
		return
	}
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "beneficiary_id required")
		return
	}
	ctx := c.Request.Context()
	f, err := h.store.GetFamily(ctx, id)
	if err != nil {
		httperr.Write(c, err, "failed to add member")
		return
	}
	if f == nil {
		response.NotFound(c, "family not found")
		return
	}
	m := &models.FamilyMember{
		FamilyID:      id,
		BeneficiaryID: body.BeneficiaryID,
		Relation:      models.FamilyRelation(body.Relation),
		IsGuardian:    body.IsGuardian,
	}
	if err := h.store.AddFamilyMember(ctx, m); err != nil {
		httperr.Write(c, err, "failed to add member")
		return
	}
	response.Created(c, m)
}

// CreateGuardianRequest is the body for POST /guardians.
type CreateGuardianRequest struct {
	Name     string `json:"name" binding:"required"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
}

// CreateGuardian handles POST /guardians.
func (h *Handler) CreateGuardian(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	var body CreateGuardianRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	g := &models.Guardian{OrganizationID: orgID, Name: body.Name, Document: body.Document, Phone: body.Phone}
	if err := h.store.CreateGuardian(c.Request.Context(), g); err != nil {
		httperr.Write(c, err, "failed to create guardian")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "guardian_create", "Guardian", g.ID, g.Name))
	response.Created(c, g)
}
