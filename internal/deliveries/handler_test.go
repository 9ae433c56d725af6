package deliveries

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/internal/models"
)

type feedEvent struct {
	org   uuid.UUID
	event string
}

type recordingFeed struct{ events []feedEvent }

func (r *recordingFeed) Notify(orgID uuid.UUID, event string, _ interface{}) {
	r.events = append(r.events, feedEvent{orgID, event})
}

func setupRouter(f *fixture) *gin.Engine {
	return setupRouterWithFeed(f, nil)
}

func setupRouterWithFeed(f *fixture, feed Notifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, f.actorID)
		c.Set(middleware.ContextOrganizationID, f.org.ID)
		c.Next()
	})
	h := NewHandler(f.svc, nil, feed)
	r.POST("/deliveries", h.Deliver)
	r.GET("/deliveries/check-by-identifier", h.CheckByIdentifier)
	r.GET("/distributions", h.List)
	return r
}

func httpDo(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHandler_Deliver(t *testing.T) {
	f := newFixture(t, 1)
	r := setupRouter(f)
	body := DeliverRequestBody{BeneficiaryID: f.maria.ID, ProductID: f.basket.ID, PeriodMonth: "2025-05-01"}

	w := httpDo(r, http.MethodPost, "/deliveries", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var d models.Distribution
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &d))
	assert.Equal(t, f.maria.ID, d.BeneficiaryID)
	assert.Equal(t, date(2025, 5, 1), d.PeriodMonth.UTC())
	require.NotNil(t, d.DeliveredBy)
	assert.Equal(t, f.actorID, *d.DeliveredBy)

	w = httpDo(r, http.MethodPost, "/deliveries", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "recent_delivery", env.Code)

	other := f.store.addBeneficiary("Ana", "PASSPORT-9", f.org)
	w = httpDo(r, http.MethodPost, "/deliveries", DeliverRequestBody{BeneficiaryID: other.ID, ProductID: f.basket.ID, PeriodMonth: "2025-05-01"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "insufficient_stock", decode(t, w).Code)
}

func TestHandler_DeliverRejectsBadInput(t *testing.T) {
	f := newFixture(t, 1)
	r := setupRouter(f)

	w := httpDo(r, http.MethodPost, "/deliveries", DeliverRequestBody{BeneficiaryID: f.maria.ID, ProductID: f.basket.ID, PeriodMonth: "May 2025"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode(t, w).Code)

	w = httpDo(r, http.MethodPost, "/deliveries", map[string]string{"period_month": "2025-05-01"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httpDo(r, http.MethodPost, "/deliveries", DeliverRequestBody{BeneficiaryID: uuid.New(), ProductID: f.basket.ID, PeriodMonth: "2025-05-01"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode(t, w).Code)
	assert.Equal(t, int64(1), f.store.stock(f.basket.ID))
}

func TestHandler_CheckByIdentifier(t *testing.T) {
	f := newFixture(t, 2)
	r := setupRouter(f)
	require.Equal(t, http.StatusCreated, httpDo(r, http.MethodPost, "/deliveries",
		DeliverRequestBody{BeneficiaryID: f.maria.ID, ProductID: f.basket.ID, PeriodMonth: "2025-05-01"}).Code)

	var out struct {
		Exists bool `json:"exists"`
	}
	w := httpDo(r, http.MethodGet, "/deliveries/check-by-identifier?identifier=529.982.247-25&period_month=2025-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &out))
	assert.True(t, out.Exists)

	w = httpDo(r, http.MethodGet, "/deliveries/check-by-identifier?identifier=52998224725&period_month=2025-04-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &out))
	assert.False(t, out.Exists)

	assert.Equal(t, http.StatusBadRequest, httpDo(r, http.MethodGet, "/deliveries/check-by-identifier?period_month=2025-05-01", nil).Code)
	assert.Equal(t, http.StatusBadRequest, httpDo(r, http.MethodGet, "/deliveries/check-by-identifier?identifier=x", nil).Code)
}

func TestHandler_List(t *testing.T) {
	f := newFixture(t, 2)
	r := setupRouter(f)

	w := httpDo(r, http.MethodGet, "/distributions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))

	_, err := f.deliver(f.maria, f.basket, date(2025, 5, 1))
	require.NoError(t, err)
	w = httpDo(r, http.MethodGet, "/distributions", nil)
	var list []models.Distribution
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Len(t, list, 1)
}

func TestHandler_DeliverNotifiesFeed(t *testing.T) {
	f := newFixture(t, 1)
	feed := &recordingFeed{}
	r := setupRouterWithFeed(f, feed)
	body := DeliverRequestBody{BeneficiaryID: f.maria.ID, ProductID: f.basket.ID, PeriodMonth: "2025-05-01"}

	require.Equal(t, http.StatusCreated, httpDo(r, http.MethodPost, "/deliveries", body).Code)
	require.Equal(t, []feedEvent{{f.org.ID, "delivery_created"}, {f.org.ID, "stock_changed"}}, feed.events)

	require.Equal(t, http.StatusBadRequest, httpDo(r, http.MethodPost, "/deliveries", body).Code)
	assert.Len(t, feed.events, 2)
}
