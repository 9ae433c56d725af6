package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/queue"
)

type fakeSink struct {
	mu   sync.Mutex
	rows []*models.AuditLog
	err  error
}

func (s *fakeSink) Insert(_ context.Context, l *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	l.ID = uuid.New()
	s.rows = append(s.rows, l)
	return nil
}

func newRedisQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return queue.NewQueue(client, zap.NewNop()), mr
}

func TestRecordThenProcess(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()
	userID, orgID := uuid.New(), uuid.New()

	rec := NewRecorder(q, zap.NewNop())
	rec.Record(ctx, Entry{UserID: &userID, OrganizationID: &orgID, Action: "deliver_basket", ModelName: "Distribution", ObjectID: "d-1"})

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	sink := &fakeSink{}
	p := NewProcessor(sink, q, time.Second, zap.NewNop())
	require.NoError(t, p.Process(ctx, job))

	require.Len(t, sink.rows, 1)
	row := sink.rows[0]
	assert.Equal(t, "deliver_basket", row.Action)
	assert.Equal(t, "Distribution", row.ModelName)
	assert.Equal(t, userID, *row.UserID)
	assert.Equal(t, orgID, *row.OrganizationID)
	assert.False(t, row.CreatedAt.IsZero())
}

func TestRecordSwallowsQueueFailure(t *testing.T) {
	q, mr := newRedisQueue(t)
	mr.Close()

	rec := NewRecorder(q, zap.NewNop())
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Entry{Action: "stock_movement"})
	})
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() { rec.Record(context.Background(), Entry{Action: "x"}) })
	assert.NotPanics(t, func() { NewRecorder(nil, nil).Record(context.Background(), Entry{Action: "x"}) })
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewProcessor(&fakeSink{}, nil, 0, nil)
	err := p.Process(context.Background(), &queue.Job{Type: "other"})
	assert.Error(t, err)
}

func TestRunRetriesFailedJobs(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.EnqueueAudit(ctx, queue.AuditPayload{Action: "x"}))

	sink := &fakeSink{err: errors.New("db down")}
	p := NewProcessor(sink, q, 100*time.Millisecond, zap.NewNop())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		items, _ := mr.List(queue.QueueDLQ)
		return len(items) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID, orgID := uuid.New(), uuid.New()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/deliveries", nil)
	c.Request.Header.Set("User-Agent", "test-agent")
	c.Set("user_id", userID)
	c.Set("organization_id", orgID)

	e := FromRequest(c, "deliver_basket", "Distribution", 7, "desc")
	assert.Equal(t, "7", e.ObjectID)
	assert.Equal(t, "test-agent", e.UserAgent)
	assert.Equal(t, userID, *e.UserID)
	assert.Equal(t, orgID, *e.OrganizationID)
}
