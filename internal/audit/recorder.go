// Package audit records user actions without ever affecting the outcome of
// the action being recorded.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/pkg/queue"
)

// Entry describes one audited action.
type Entry struct {
	UserID         *uuid.UUID
	OrganizationID *uuid.UUID
	Action         string
	ModelName      string
	ObjectID       string
	Description    string
	IPAddress      string
	UserAgent      string
}

// Enqueuer is the part of the job queue the recorder needs.
type Enqueuer interface {
	EnqueueAudit(ctx context.Context, payload queue.AuditPayload) error
}

// Recorder hands audit entries to the worker queue. A nil Recorder or a nil
// queue only logs.
type Recorder struct {
	queue  Enqueuer
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates an audit recorder.
func NewRecorder(q Enqueuer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{queue: q, logger: logger, now: time.Now}
}

// Record enqueues e. Failures are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("audit record panicked", zap.String("action", e.Action), zap.Any("panic", p))
		}
	}()
	if r.queue == nil {
		r.logger.Debug("audit", zap.String("action", e.Action), zap.String("object_id", e.ObjectID))
		return
	}
	payload := queue.AuditPayload{
		UserID:         e.UserID,
		OrganizationID: e.OrganizationID,
		Action:         e.Action,
		ModelName:      e.ModelName,
		ObjectID:       e.ObjectID,
		Description:    e.Description,
		IPAddress:      e.IPAddress,
		UserAgent:      e.UserAgent,
		OccurredAt:     r.now(),
	}
	// detached so a cancelled request still gets audited
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.queue.EnqueueAudit(enqueueCtx, payload); err != nil {
		r.logger.Warn("audit enqueue failed", zap.String("action", e.Action), zap.Error(err))
	}
}

// FromRequest fills the actor, organization and client fields from a gin
// request handled behind the JWT middleware.
func FromRequest(c *gin.Context, action, modelName string, objectID any, description string) Entry {
	e := Entry{
		Action:      action,
		ModelName:   modelName,
		ObjectID:    fmt.Sprint(objectID),
		Description: description,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	}
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			e.UserID = &id
		}
	}
	if id, ok := middleware.OrganizationID(c); ok {
		e.OrganizationID = &id
	}
	return e
}
