package audit

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/logger"
	"github.com/solidariza/backend/pkg/response"
)

// Lister reads persisted audit rows.
type Lister interface {
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]models.AuditLog, error)
}

// Handler serves the audit trail of the active organization.
type Handler struct {
	logs Lister
}

// NewHandler creates an audit handler.
func NewHandler(logs Lister) *Handler {
	return &Handler{logs: logs}
}

// List handles GET /audit-logs?limit=.
func (h *Handler) List(c *gin.Context) {
	orgID, _ := middleware.OrganizationID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.logs.ListByOrganization(c.Request.Context(), orgID, limit)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("list audit logs", zap.Error(err))
		response.Internal(c, "failed to list audit logs")
		return
	}
	if list == nil {
		list = []models.AuditLog{}
	}
	response.OK(c, list)
}
