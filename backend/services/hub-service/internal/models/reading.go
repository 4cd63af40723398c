package models

import (
	"time"

	"github.com/google/uuid"
)

// Reading is one calibrated measurement fact. Rows are append-only; only the
// Synced flag changes afterwards, during offline-upload reconciliation.
type Reading struct {
	ID              int64
	TenantID        uuid.UUID
	NodeID          uuid.UUID
	BindingID       *uuid.UUID
	MeasurementType string
	RawValue        float64
	Value           float64
	Unit            string
	Timestamp       time.Time
	Synced          bool
}
