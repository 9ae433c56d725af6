package events

import (
	"bytes"
	"context"
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

type memStore struct {
	events      map[uuid.UUID]*models.Event
	attendances map[[2]uuid.UUID]*models.Attendance
}

func newMemStore() *memStore {
	return &memStore{events: map[uuid.UUID]*models.Event{}, attendances: map[[2]uuid.UUID]*models.Attendance{}}
}

func (m *memStore) CreateEvent(_ context.Context, e *models.Event) error {
	for _, other := range m.events {
		if other.OrganizationID == e.OrganizationID && other.Name == e.Name && other.Date.Equal(e.Date) {
			return models.NewValidationError("event already exists")
		}
	}
	e.ID = uuid.New()
	m.events[e.ID] = e
	return nil
}

func (m *memStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return m.events[id], nil
}

func (m *memStore) ListEvents(_ context.Context, orgID uuid.UUID) ([]models.Event, error) {
	var list []models.Event
	for _, e := range m.events {
		if e.OrganizationID == orgID {
			list = append(list, *e)
		}
	}
	return list, nil
}

func (m *memStore) Summary(_ context.Context, id uuid.UUID) (*models.EventSummary, error) {
	e := m.events[id]
	if e == nil {
		return nil, nil
	}
	s := &models.EventSummary{Event: *e, Attendances: []models.Attendance{}}
	for key, a := range m.attendances {
		if key[0] != id {
			continue
		}
		s.Attendances = append(s.Attendances, *a)
		if a.Present {
			s.Present++
		} else {
			s.Absent++
		}
	}
	return s, nil
}

func (m *memStore) MarkAttendance(_ context.Context, eventID, beneficiaryID uuid.UUID, present bool) (*models.Attendance, error) {
	key := [2]uuid.UUID{eventID, beneficiaryID}
	a, ok := m.attendances[key]
	if !ok {
		a = &models.Attendance{ID: uuid.New(), EventID: eventID, BeneficiaryID: beneficiaryID}
		m.attendances[key] = a
	}
	a.Present = present
	return a, nil
}

type linkSet map[uuid.UUID]bool

func (l linkSet) IsLinked(_ context.Context, _, beneficiaryID uuid.UUID) (bool, error) {
	return l[beneficiaryID], nil
}

func setupRouter(store Store, links linkSet, orgID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uuid.New())
		c.Set(middleware.ContextOrganizationID, orgID)
		c.Next()
	})
	h := NewHandler(store, links, nil)
	r.POST("/events", h.CreateEvent)
	r.GET("/events", h.ListEvents)
	r.GET("/events/:id", h.GetEvent)
	r.PUT("/events/:id/attendance", h.MarkAttendance)
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

func dataOf(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func boolPtr(b bool) *bool { return &b }

func TestEventAttendanceFlow(t *testing.T) {
	orgID := uuid.New()
	present, absent, stranger := uuid.New(), uuid.New(), uuid.New()
	r := setupRouter(newMemStore(), linkSet{present: true, absent: true}, orgID)

	w := httpDo(r, http.MethodPost, "/events", CreateEventRequest{Name: "Workshop", Date: "2025-03-15"})
	require.Equal(t, http.StatusCreated, w.Code)
	var e models.Event
	dataOf(t, w, &e)

	w = httpDo(r, http.MethodPost, "/events", CreateEventRequest{Name: "Workshop", Date: "2025-03-15"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusBadRequest, httpDo(r, http.MethodPost, "/events", CreateEventRequest{Name: "X", Date: "15/03/2025"}).Code)

	path := "/events/" + e.ID.String()
	require.Equal(t, http.StatusOK, httpDo(r, http.MethodPut, path+"/attendance", AttendanceRequest{BeneficiaryID: present, Present: boolPtr(true)}).Code)
	require.Equal(t, http.StatusOK, httpDo(r, http.MethodPut, path+"/attendance", AttendanceRequest{BeneficiaryID: absent, Present: boolPtr(true)}).Code)
	require.Equal(t, http.StatusOK, httpDo(r, http.MethodPut, path+"/attendance", AttendanceRequest{BeneficiaryID: absent, Present: boolPtr(false)}).Code)
	assert.Equal(t, http.StatusBadRequest, httpDo(r, http.MethodPut, path+"/attendance", AttendanceRequest{BeneficiaryID: stranger, Present: boolPtr(true)}).Code)

	w = httpDo(r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s models.EventSummary
	dataOf(t, w, &s)
	assert.Equal(t, 1, s.Present)
	assert.Equal(t, 1, s.Absent)
	assert.Len(t, s.Attendances, 2)
}

func TestEventOfAnotherOrganizationIsHidden(t *testing.T) {
	store := newMemStore()
	other := &models.Event{OrganizationID: uuid.New(), Name: "Distribution"}
	require.NoError(t, store.CreateEvent(context.Background(), other))

	r := setupRouter(store, linkSet{}, uuid.New())
	assert.Equal(t, http.StatusNotFound, httpDo(r, http.MethodGet, "/events/"+other.ID.String(), nil).Code)

	w := httpDo(r, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Event
	dataOf(t, w, &list)
	assert.Empty(t, list)
}
