package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/response"
)

func TestWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err      error
		status   int
		code     string
		contains string
	}{
		{models.NewValidationError("bad"), http.StatusBadRequest, CodeValidation, "bad"},
		{fmt.Errorf("wrapped: %w", &models.UniqueMonthlyDeliveryError{Msg: "recent"}), http.StatusBadRequest, CodeRecentDelivery, "recent"},
		{&models.StockError{Msg: "insufficient stock"}, http.StatusBadRequest, CodeStock, "insufficient stock"},
		{&models.ConstraintError{Constraint: "uniq"}, http.StatusBadRequest, CodeConstraint, "conflicts"},
		{errors.New("boom"), http.StatusInternalServerError, "", "failed"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		Write(c, tc.err, "failed")

		require.Equal(t, tc.status, w.Code)
		var body response.Body
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, tc.code, body.Code)
		assert.Contains(t, body.Error, tc.contains)
	}
}
