package stock

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/audit"
	"github.com/solidariza/backend/internal/httperr"
	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/metrics"
	"github.com/solidariza/backend/pkg/response"
)

// Ledger is the persistence the stock handler needs.
type Ledger interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, orgID uuid.UUID) ([]models.ProductStock, error)
	RecordMovement(ctx context.Context, orgID uuid.UUID, product *models.Product, kind models.MovementKind, quantity int64, reason string, actorID *uuid.UUID) (*models.StockMovement, error)
	CurrentStock(ctx context.Context, productID uuid.UUID) (int64, error)
	ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error)
}

// Notifier pushes changes to the organization's live feed.
type Notifier interface {
	Notify(orgID uuid.UUID, event string, payload interface{})
}

// Handler handles product and stock movement endpoints.
type Handler struct {
	ledger Ledger
	audit  *audit.Recorder
	feed   Notifier
}

// NewHandler creates a stock handler. feed may be nil.
func NewHandler(ledger Ledger, recorder *audit.Recorder, feed Notifier) *Handler {
	return &Handler{ledger: ledger, audit: recorder, feed: feed}
}

// CreateProductRequest is the body for POST /products.
type CreateProductRequest struct {
	Name     string `json:"name" binding:"required"`
	IsBundle bool   `json:"is_bundle"`
}

// MovementRequest is the body for POST /products/:id/movements.
type MovementRequest struct {
	Kind     string `json:"kind" binding:"required"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

// CreateProduct handles POST /products.
func (h *Handler) CreateProduct(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	var body CreateProductRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	p := &models.Product{OrganizationID: orgID, Name: body.Name, IsBundle: body.IsBundle}
	if err := h.ledger.CreateProduct(c.Request.Context(), p); err != nil {
		httperr.Write(c, err, "failed to create product")
		return
	}
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "product_create", "Product", p.ID, p.Name))
	response.Created(c, p)
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	list, err := h.ledger.ListProducts(c.Request.Context(), orgID)
	if err != nil {
		httperr.Write(c, err, "failed to list products")
		return
	}
	if list == nil {
		list = []models.ProductStock{}
	}
	response.OK(c, list)
}

// GetProduct handles GET /products/:id (product with its current stock).
func (h *Handler) GetProduct(c *gin.Context) {
	p, ok := h.loadProduct(c)
	if !ok {
		return
	}
	stock, err := h.ledger.CurrentStock(c.Request.Context(), p.ID)
	if err != nil {
		httperr.Write(c, err, "failed to compute stock")
		return
	}
	response.OK(c, models.ProductStock{Product: *p, Stock: stock})
}

// RecordMovement handles POST /products/:id/movements.
func (h *Handler) RecordMovement(c *gin.Context) {
	p, ok := h.loadProduct(c)
	if !ok {
		return
	}
	var body MovementRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "kind and quantity required")
		return
	}
	orgID, _ := middleware.OrganizationID(c)
	actor := middleware.UserID(c)
	kind := models.MovementKind(strings.ToUpper(strings.TrimSpace(body.Kind)))
	m, err := h.ledger.RecordMovement(c.Request.Context(), orgID, p, kind, body.Quantity, strings.TrimSpace(body.Reason), &actor)
	if err != nil {
		httperr.Write(c, err, "failed to record movement")
		return
	}
	metrics.StockMovements.WithLabelValues(string(m.Kind)).Inc()
	h.audit.Record(c.Request.Context(), audit.FromRequest(c, "stock_movement", "StockMovement", p.ID,
		fmt.Sprintf("%s %d %s", m.Kind, m.Quantity, p.Name)))
	if h.feed != nil {
		h.feed.Notify(orgID, "stock_changed", m)
	}
	response.Created(c, m)
}

// ListMovements handles GET /products/:id/movements?limit=.
func (h *Handler) ListMovements(c *gin.Context) {
	p, ok := h.loadProduct(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.ledger.ListMovements(c.Request.Context(), p.ID, limit)
	if err != nil {
		httperr.Write(c, err, "failed to list movements")
		return
	}
	if list == nil {
		list = []models.StockMovement{}
	}
	response.OK(c, list)
}

// loadProduct resolves :id within the active organization. Products of
// other organizations are reported as missing.
func (h *Handler) loadProduct(c *gin.Context) (*models.Product, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return nil, false
	}
	p, err := h.ledger.GetProduct(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err, "failed to load product")
		return nil, false
	}
	orgID, _ := middleware.OrganizationID(c)
	if p == nil || p.OrganizationID != orgID {
		response.NotFound(c, "product not found")
		return nil, false
	}
	return p, true
}
