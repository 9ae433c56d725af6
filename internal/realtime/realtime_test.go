package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solidariza/backend/internal/auth"
	"github.com/solidariza/backend/internal/models"
)

func localClient(orgID uuid.UUID) *Client {
	return &Client{ID: uuid.NewString(), OrganizationID: orgID, send: make(chan Message, 8)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHub_BroadcastStaysInOrganization(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	orgA, orgB := uuid.New(), uuid.New()
	a, b := localClient(orgA), localClient(orgB)
	hub.Register(a)
	hub.Register(b)

	hub.Notify(orgA, EventStockChanged, map[string]int{"stock": 9})

	msg := receive(t, a)
	assert.Equal(t, EventStockChanged, msg.Event)
	assert.JSONEq(t, `{"stock":9}`, string(msg.Data))
	assert.Empty(t, b.send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	org := uuid.New()
	c := localClient(org)
	hub.Register(c)
	require.Equal(t, 1, hub.Listeners(org))

	hub.Unregister(c)
	assert.Equal(t, 0, hub.Listeners(org))
	_, open := <-c.send
	assert.False(t, open)

	hub.Unregister(c)
}

func TestHub_NilIgnoresNotify(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.Notify(uuid.New(), EventDeliveryCreated, nil) })
}

func TestHub_FanOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bridge := NewRedisPubSub(rdb, zap.NewNop())
	sender := NewHub(zap.NewNop(), bridge, bridge)
	receiver := NewHub(zap.NewNop(), bridge, bridge)

	org := uuid.New()
	c := localClient(org)
	receiver.Register(c)

	sender.Notify(org, EventDeliveryCreated, map[string]string{"period_month": "2025-05"})

	msg := receive(t, c)
	assert.Equal(t, EventDeliveryCreated, msg.Event)
	assert.JSONEq(t, `{"period_month":"2025-05"}`, string(msg.Data))

	receiver.Unregister(c)
}

func TestServeWs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtService := auth.NewJWTService("test-secret", 1)
	hub := NewHub(zap.NewNop(), nil, nil)
	r := gin.New()
	r.GET("/ws", ServeWs(hub, jwtService, zap.NewNop()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	org := uuid.New()
	token, err := jwtService.Generate(&models.User{ID: uuid.New(), Role: models.RoleUser, OrganizationID: &org})
	require.NoError(t, err)

	t.Run("rejects missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=nope", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects token without organization", func(t *testing.T) {
		super, err := jwtService.Generate(&models.User{ID: uuid.New(), Role: models.RoleAdmin, IsSuperuser: true})
		require.NoError(t, err)
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+super, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("streams organization events", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.Eventually(t, func() bool { return hub.Listeners(org) == 1 }, 2*time.Second, 10*time.Millisecond)

		hub.Notify(org, EventStockChanged, map[string]int64{"stock": 4})

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, EventStockChanged, msg.Event)
		var data map[string]int64
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, int64(4), data["stock"])

		conn.Close()
		require.Eventually(t, func() bool { return hub.Listeners(org) == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}
