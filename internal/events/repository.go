package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/database"
)

// Repository handles events and attendances.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an event repository bound to a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// CreateEvent inserts an event. (organization, name, date) is unique.
func (r *Repository) CreateEvent(ctx context.Context, e *models.Event) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return models.NewValidationError("event name is required")
	}
	const q = `INSERT INTO events (organization_id, name, date) VALUES ($1, $2, $3) RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, e.OrganizationID, e.Name, e.Date).Scan(&e.ID, &e.CreatedAt)
	if _, ok := database.UniqueViolation(err); ok {
		return models.NewValidationError("event %q already exists on %s", e.Name, e.Date.Format(models.PeriodLayout))
	}
	return err
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	if err := row.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.Date, &e.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// GetEvent returns an event by ID, or nil if missing.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.db.QueryRow(ctx, `SELECT id, organization_id, name, date, created_at FROM events WHERE id = $1`, id))
}

// ListEvents returns an organization's events, newest first.
func (r *Repository) ListEvents(ctx context.Context, orgID uuid.UUID) ([]models.Event, error) {
	rows, err := r.db.Query(ctx, `SELECT id, organization_id, name, date, created_at
		FROM events WHERE organization_id = $1 ORDER BY date DESC, name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Summary returns the event with its attendances and present/absent counts,
// or nil if the event does not exist.
func (r *Repository) Summary(ctx context.Context, id uuid.UUID) (*models.EventSummary, error) {
	e, err := r.GetEvent(ctx, id)
	if err != nil || e == nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, event_id, beneficiary_id, present, created_at
		FROM attendances WHERE event_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	s := &models.EventSummary{Event: *e, Attendances: []models.Attendance{}}
	for rows.Next() {
		var a models.Attendance
		if err := rows.Scan(&a.ID, &a.EventID, &a.BeneficiaryID, &a.Present, &a.CreatedAt); err != nil {
			return nil, err
		}
		s.Attendances = append(s.Attendances, a)
		if a.Present {
			s.Present++
		} else {
			s.Absent++
		}
	}
	return s, rows.Err()
}

// MarkAttendance sets the attendance flag, overwriting any earlier value.
func (r *Repository) MarkAttendance(ctx context.Context, eventID, beneficiaryID uuid.UUID, present bool) (*models.Attendance, error) {
	const q = `INSERT INTO attendances (event_id, beneficiary_id, present)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, beneficiary_id) DO UPDATE SET present = EXCLUDED.present
		RETURNING id, event_id, beneficiary_id, present, created_at`
	var a models.Attendance
	err := r.db.QueryRow(ctx, q, eventID, beneficiaryID, present).
		Scan(&a.ID, &a.EventID, &a.BeneficiaryID, &a.Present, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// EnsureEvent returns the (organization, name, date) event, creating it when
// missing.
func (r *Repository) EnsureEvent(ctx context.Context, orgID uuid.UUID, name string, date time.Time) (*models.Event, error) {
	const ins = `INSERT INTO events (organization_id, name, date) VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, name, date) DO NOTHING`
	if _, err := r.db.Exec(ctx, ins, orgID, name, date); err != nil {
		return nil, err
	}
	return scanEvent(r.db.QueryRow(ctx, `SELECT id, organization_id, name, date, created_at
		FROM events WHERE organization_id = $1 AND name = $2 AND date = $3`, orgID, name, date))
}

// EnsureAttendance records the beneficiary as present unless an attendance
// row already exists; an existing row is returned unchanged.
func (r *Repository) EnsureAttendance(ctx context.Context, eventID, beneficiaryID uuid.UUID) (*models.Attendance, error) {
	const ins = `INSERT INTO attendances (event_id, beneficiary_id, present) VALUES ($1, $2, TRUE)
		ON CONFLICT (event_id, beneficiary_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, ins, eventID, beneficiaryID); err != nil {
		return nil, err
	}
	var a models.Attendance
	err := r.db.QueryRow(ctx, `SELECT id, event_id, beneficiary_id, present, created_at
		FROM attendances WHERE event_id = $1 AND beneficiary_id = $2`, eventID, beneficiaryID).
		Scan(&a.ID, &a.EventID, &a.BeneficiaryID, &a.Present, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
