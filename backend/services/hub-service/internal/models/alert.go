package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity levels, ordered so that higher values sort as more urgent.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns the wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Alert sources.
const (
	AlertSourceLocal    = "local"
	AlertSourceExternal = "external"
)

// AlertType is a catalog entry for a class of alerts. Code is unique and
// stored lowercase.
type AlertType struct {
	ID           uuid.UUID
	Code         string
	Name         string
	DefaultLevel Severity
	IsGlobal     bool
}

// Alert is one raised alert. At most one active alert exists per
// (type code, hub/node scope); the alert service enforces this on create.
// Acknowledging is terminal: the row never becomes active again.
type Alert struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	AlertTypeID    uuid.UUID
	TypeCode       string
	HubID          *uuid.UUID
	NodeID         *uuid.UUID
	Severity       Severity
	Source         string
	Message        string
	Recommendation *string
	Active         bool
	CreatedAt      time.Time
	AcknowledgedAt *time.Time
}
