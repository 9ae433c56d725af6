package events

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/audit"
	"github.com/solidariza/backend/internal/httperr"
	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/response"
)

// Store is the persistence the event handler needs.
type Store interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context, orgID uuid.UUID) ([]models.Event, error)
	Summary(ctx context.Context, id uuid.UUID) (*models.EventSummary, error)
	MarkAttendance(ctx context.Context, eventID, beneficiaryID uuid.UUID, present bool) (*models.Attendance, error)
}

// MembershipChecker reports whether a beneficiary belongs to an organization.
type MembershipChecker interface {
	IsLinked(ctx context.Context, orgID, beneficiaryID uuid.UUID) (bool, error)
}

// Handler handles event and attendance endpoints.
type Handler struct {
	store   Store
	members MembershipChecker
	audit   *audit.Recorder
}

// NewHandler creates an event handler.
func NewHandler(store Store, members MembershipChecker, recorder *audit.Recorder) *Handler {
	return &Handler{store: store, members: members, audit: recorder}
}

// CreateEventRequest is the body for POST /events.
type CreateEventRequest struct {
	Name string `json:"name" binding:"required"`
	Date string `json:"date" binding:"required"`
}

// CreateEvent handles POST /events.
func (h *Handler) CreateEvent(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	var body CreateEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and date required")
		return
	}
	date, err := time.Parse(models.PeriodLayout, body.Date)
	if err != nil {
		response.BadRequest(c, "invalid date (YYYY-MM-DD)")
		return
	}
	e := &models.Event{OrganizationID: orgID, Name: body.Name, Date: date}
	if err := h.store.CreateEvent(c.Request.Context(), e); err != nil {
		httperr.Write(c, err, "failed to create event")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "event_create", "Event", e.ID, e.Name))
	response.Created(c, e)
}

// ListEvents handles GET /events.
func (h *Handler) ListEvents(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	list, err := h.store.ListEvents(c.Request.Context(), orgID)
	if err != nil {
		httperr.Write(c, err, "failed to list events")
		return
	}
	if list == nil {
		list = []models.Event{}
	}
	response.OK(c, list)
}

// GetEvent handles GET /events/:id (event with attendance summary).
func (h *Handler) GetEvent(c *gin.Context) {
	id, ok := h.ownedEventID(c)
	if !ok {
		return
	}
	s, err := h.store.Summary(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, "failed to load event")
		return
	}
	if s == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, s)
}

// AttendanceRequest is the body for PUT /events/:id/attendance.
type AttendanceRequest struct {
	BeneficiaryID uuid.UUID `json:"beneficiary_id" binding:"required"`
	Present       *bool     `json:"present" binding:"required"`
}

// MarkAttendance handles PUT /events/:id/attendance.
func (h *Handler) MarkAttendance(c *gin.Context) {
	id, ok := h.ownedEventID(c)
	if !ok {
		return
	}
	var body AttendanceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "beneficiary_id and present required")
		return
	}
	ctx := c.Request.Context()
	orgID, _ := middleware.OrganizationID(c)
	linked, err := h.members.IsLinked(ctx, orgID, body.BeneficiaryID)
	if err != nil {
		httperr.Write(c, err, "failed to mark attendance")
		return
	}
	if !linked {
		httperr.Write(c, models.NewValidationError("beneficiary not linked to this organization"), "")
		return
	}
	a, err := h.store.MarkAttendance(ctx, id, body.BeneficiaryID, *body.Present)
	if err != nil {
		httperr.Write(c, err, "failed to mark attendance")
		return
	}
	h.audit.Record(ctx, audit.FromRequest(c, "attendance_mark", "Attendance", a.ID,
		fmt.Sprintf("present=%t", a.Present)))
	response.OK(c, a)
}

// ownedEventID parses :id and checks the event belongs to the active
// organization.
func (h *Handler) ownedEventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	e, err := h.store.GetEvent(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, "failed to load event")
		return uuid.Nil, false
	}
	orgID, _ := middleware.OrganizationID(c)
	if e == nil || e.OrganizationID != orgID {
		response.NotFound(c, "event not found")
		return uuid.Nil, false
	}
	return id, true
}
