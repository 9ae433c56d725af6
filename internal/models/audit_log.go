package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records a user action. Rows are written asynchronously by the worker.
type AuditLog struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Action         string     `json:"action"`
	ModelName      string     `json:"model_name"`
	ObjectID       string     `json:"object_id"`
	Description    string     `json:"description"`
	IPAddress      string     `json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
	CreatedAt      time.Time  `json:"created_at"`
}
