package deliveries

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/audit"
	"github.com/solidariza/backend/internal/httperr"
	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/response"
)

// Deliverer is the delivery behaviour the handler exposes.
type Deliverer interface {
	Deliver(ctx context.Context, cmd DeliverCommand) (*models.Distribution, error)
	CheckByIdentifier(ctx context.Context, identifier string, period time.Time) (bool, error)
	List(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Distribution, error)
}

// Notifier pushes changes to the organization's live feed.
type Notifier interface {
	Notify(orgID uuid.UUID, event string, payload interface{})
}

// Handler handles delivery endpoints.
type Handler struct {
	svc   Deliverer
	audit *audit.Recorder
	feed  Notifier
}

// NewHandler creates a delivery handler. feed may be nil.
func NewHandler(svc Deliverer, recorder *audit.Recorder, feed Notifier) *Handler {
	return &Handler{svc: svc, audit: recorder, feed: feed}
}

// DeliverRequestBody is the body for POST /deliveries.
type DeliverRequestBody struct {
	BeneficiaryID uuid.UUID `json:"beneficiary_id" binding:"required"`
	ProductID     uuid.UUID `json:"product_id" binding:"required"`
	PeriodMonth   string    `json:"period_month" binding:"required"`
}

// Deliver handles POST /deliveries.
func (h *Handler) Deliver(c *gin.Context) {
	var body DeliverRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "beneficiary_id, product_id and period_month required")
		return
	}
	period, err := models.ParsePeriod(body.PeriodMonth)
	if err != nil {
		httperr.Write(c, err, "")
		return
	}
	orgID, _ := middleware.OrganizationID(c)
	actor := middleware.UserID(c)
	var actorID *uuid.UUID
	if actor != uuid.Nil {
		actorID = &actor
	}
	d, err := h.svc.Deliver(c.Request.Context(), DeliverCommand{
		OrganizationID: orgID,
		BeneficiaryID:  body.BeneficiaryID,
		ProductID:      body.ProductID,
		PeriodMonth:    period,
		ActorID:        actorID,
	})
	if err != nil {
		httperr.Write(c, err, "failed to deliver basket")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "basket_delivery", "Distribution", d.ID,
		fmt.Sprintf("beneficiary %s product %s %s", d.BeneficiaryID, d.ProductID, d.PeriodMonth.Format("2006-01"))))
	if h.feed != nil {
		h.feed.Notify(orgID, "delivery_created", d)
		h.feed.Notify(orgID, "stock_changed", gin.H{"product_id": d.ProductID})
	}
	response.Created(c, d)
}

// CheckByIdentifier handles GET /deliveries/check-by-identifier.
func (h *Handler) CheckByIdentifier(c *gin.Context) {
	ident := c.Query("identifier")
	if ident == "" {
		response.BadRequest(c, "identifier required")
		return
	}
	period, err := models.ParsePeriod(c.Query("period_month"))
	if err != nil {
		httperr.Write(c, err, "")
		return
	}
	exists, err := h.svc.CheckByIdentifier(c.Request.Context(), ident, period)
	if err != nil {
		httperr.Write(c, err, "failed to check deliveries")
		return
	}
	response.OK(c, gin.H{"exists": exists})
}

// List handles GET /distributions?limit=.
func (h *Handler) List(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.svc.List(c.Request.Context(), orgID, limit)
	if err != nil {
		httperr.Write(c, err, "failed to list distributions")
		return
	}
	if list == nil {
		list = []models.Distribution{}
	}
	response.OK(c, list)
}
