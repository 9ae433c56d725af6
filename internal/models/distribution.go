package models

import (
	"time"

	"github.com/google/uuid"
)

// PeriodLayout is the wire format of period_month.
const PeriodLayout = "2006-01-02"

// Distribution is an immutable record of one delivered unit.
type Distribution struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	BeneficiaryID  uuid.UUID  `json:"beneficiary_id"`
	ProductID      uuid.UUID  `json:"product_id"`
	PeriodMonth    time.Time  `json:"period_month"`
	DeliveredBy    *uuid.UUID `json:"delivered_by,omitempty"`
	DeliveredAt    time.Time  `json:"delivered_at"`
}

// MonthStart returns the first day of t's calendar month at midnight UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod parses a YYYY-MM-DD date and normalizes it to its month start.
func ParsePeriod(s string) (time.Time, error) {
	d, err := time.Parse(PeriodLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Msg: "invalid period_month (YYYY-MM-01)"}
	}
	return MonthStart(d), nil
}
