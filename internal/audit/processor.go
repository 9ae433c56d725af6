package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/queue"
)

// Sink stores audit rows.
type Sink interface {
	Insert(ctx context.Context, l *models.AuditLog) error
}

// JobSource is the consuming side of the job queue.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor drains audit jobs into the database.
type Processor struct {
	sink        Sink
	queue       JobSource
	pollTimeout time.Duration
	logger      *zap.Logger
}

// NewProcessor creates an audit job processor.
func NewProcessor(sink Sink, q JobSource, pollTimeout time.Duration, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Processor{sink: sink, queue: q, pollTimeout: pollTimeout, logger: logger}
}

// Process persists one audit job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAudit {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AuditPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	createdAt := payload.OccurredAt
	if createdAt.IsZero() {
		createdAt = job.CreatedAt
	}
	row := &models.AuditLog{
		UserID:         payload.UserID,
		OrganizationID: payload.OrganizationID,
		Action:         payload.Action,
		ModelName:      payload.ModelName,
		ObjectID:       payload.ObjectID,
		Description:    payload.Description,
		IPAddress:      payload.IPAddress,
		UserAgent:      payload.UserAgent,
		CreatedAt:      createdAt,
	}
	if err := p.sink.Insert(ctx, row); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Run loops until ctx is cancelled: dequeue, process, retry on failure.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("audit processor stopping")
			return
		default:
		}
		job, err := p.queue.Dequeue(ctx, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Warn("audit job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if retryErr := p.queue.Retry(ctx, job); retryErr != nil {
				p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(retryErr))
			}
		}
	}
}
