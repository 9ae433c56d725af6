// Package httperr converts domain errors into API responses.
package httperr

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/logger"
	"github.com/solidariza/backend/pkg/response"
)

// Error codes carried in the response envelope.
const (
	CodeValidation     = "validation_error"
	CodeRecentDelivery = "recent_delivery"
	CodeStock          = "insufficient_stock"
	CodeConstraint     = "constraint_violation"
)

// Write sends a 400 for every domain error and a 500 with fallback as
// message for anything else.
func Write(c *gin.Context, err error, fallback string) {
	var (
		ve *models.ValidationError
		ue *models.UniqueMonthlyDeliveryError
		se *models.StockError
		ce *models.ConstraintError
	)
	switch {
	case errors.As(err, &ve):
		response.Rejected(c, CodeValidation, ve.Msg)
	case errors.As(err, &ue):
		response.Rejected(c, CodeRecentDelivery, ue.Msg)
	case errors.As(err, &se):
		response.Rejected(c, CodeStock, se.Msg)
	case errors.As(err, &ce):
		response.Rejected(c, CodeConstraint, "operation conflicts with an existing record")
	default:
		logger.FromContext(c.Request.Context()).Error(fallback, zap.Error(err))
		response.Internal(c, fallback)
	}
}
