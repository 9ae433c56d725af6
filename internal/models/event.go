package models

import (
	"time"

	"github.com/google/uuid"
)

// DistributionEventName is the event every delivery month is recorded under.
const DistributionEventName = "Distribution"

// Event is unique per (organization, name, date).
type Event struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	CreatedAt      time.Time `json:"created_at"`
}

// Attendance is unique per (event, beneficiary).
type Attendance struct {
	ID            uuid.UUID `json:"id"`
	EventID       uuid.UUID `json:"event_id"`
	BeneficiaryID uuid.UUID `json:"beneficiary_id"`
	Present       bool      `json:"present"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventSummary is an event with its attendance list and counts.
type EventSummary struct {
	Event       Event        `json:"event"`
	Attendances []Attendance `json:"attendances"`
	Present     int          `json:"present"`
	Absent      int          `json:"absent"`
}
