package organizations

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/audit"
	"github.com/solidariza/backend/internal/auth"
	"github.com/solidariza/backend/internal/httperr"
	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/response"
)

// Store is the organization persistence the handler needs.
type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context) ([]models.Organization, error)
	ToggleActive(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Collaborators stores user accounts.
type Collaborators interface {
	Create(ctx context.Context, u *models.User) error
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.UserPublic, error)
}

// Handler handles organization and collaborator endpoints.
type Handler struct {
	store Store
	users Collaborators
	audit *audit.Recorder
}

// NewHandler creates an organizations handler.
func NewHandler(store Store, users Collaborators, recorder *audit.Recorder) *Handler {
	return &Handler{store: store, users: users, audit: recorder}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateOrganization handles POST /organizations (superuser only).
func (h *Handler) CreateOrganization(c *gin.Context) {
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	if len(strings.TrimSpace(body.Name)) > 255 {
		response.BadRequest(c, "name must be 1–255 characters")
		return
	}
	org := &models.Organization{Name: body.Name}
	if err := h.store.Create(c.Request.Context(), org); err != nil {
		httperr.Write(c, err, "failed to create organization")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "organization_create", "Organization", org.ID, org.Name))
	response.Created(c, org)
}

// ListOrganizations handles GET /organizations. Collaborators only see their
// own organization.
func (h *Handler) ListOrganizations(c *gin.Context) {
	ctx := c.Request.Context()
	if !middleware.IsSuperuser(c) {
		list := []models.Organization{}
		if orgID, ok := middleware.OrganizationID(c); ok {
			org, err := h.store.GetByID(ctx, orgID)
			if err != nil {
				httperr.Write(c, err, "failed to list organizations")
				return
			}
			if org != nil {
				list = append(list, *org)
			}
		}
		response.OK(c, list)
		return
	}
	list, err := h.store.List(ctx)
	if err != nil {
		httperr.Write(c, err, "failed to list organizations")
		return
	}
	if list == nil {
		list = []models.Organization{}
	}
	response.OK(c, list)
}

// GetOrganization handles GET /organizations/:id.
func (h *Handler) GetOrganization(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if own, _ := middleware.OrganizationID(c); own != id && !middleware.IsSuperuser(c) {
		response.NotFound(c, "organization not found")
		return
	}
	org, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, "failed to load organization")
		return
	}
	if org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, org)
}

// ToggleActive handles PATCH /organizations/:id/toggle-active (superuser only).
func (h *Handler) ToggleActive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	org, err := h.store.ToggleActive(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, "failed to update organization")
		return
	}
	if org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	action := "organization_deactivate"
	if org.IsActive {
		action = "organization_activate"
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, action, "Organization", org.ID, org.Name))
	response.OK(c, org)
}

// DeleteOrganization handles DELETE /organizations/:id (superuser only).
func (h *Handler) DeleteOrganization(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	found, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, "failed to delete organization")
		return
	}
	if !found {
		response.NotFound(c, "organization not found")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "organization_delete", "Organization", id, ""))
	response.NoContent(c)
}

// CreateCollaboratorRequest is the body for POST /collaborators.
type CreateCollaboratorRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// CreateCollaborator handles POST /collaborators. The new account joins the
// active organization; only admins may create admins.
func (h *Handler) CreateCollaborator(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	var body CreateCollaboratorRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email and password (min 8 chars) required")
		return
	}
	role := models.Role(strings.ToUpper(strings.TrimSpace(body.Role)))
	if role == "" {
		role = models.RoleUser
	}
	switch role {
	case models.RoleAdmin, models.RoleManager, models.RoleUser:
	default:
		response.BadRequest(c, "role must be ADMIN, MANAGER or USER")
		return
	}
	callerRole := models.Role(c.GetString(middleware.ContextUserRole))
	if role == models.RoleAdmin && callerRole != models.RoleAdmin && !middleware.IsSuperuser(c) {
		response.Forbidden(c, "only admins can create admins")
		return
	}
	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		httperr.Write(c, err, "failed to create collaborator")
		return
	}
	u := &models.User{
		Email:          strings.ToLower(strings.TrimSpace(body.Email)),
		Password:       hash,
		FullName:       strings.TrimSpace(body.FullName),
		Role:           role,
		OrganizationID: &orgID,
	}
	if err := h.users.Create(c.Request.Context(), u); err != nil {
		httperr.Write(c, err, "failed to create collaborator")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "collaborator_create", "User", u.ID, u.Email))
	response.Created(c, u.ToPublic())
}

// ListCollaborators handles GET /collaborators.
func (h *Handler) ListCollaborators(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	list, err := h.users.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		httperr.Write(c, err, "failed to list collaborators")
		return
	}
	if list == nil {
		list = []models.UserPublic{}
	}
	response.OK(c, list)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return uuid.Nil, false
	}
	return id, true
}
