package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sensegrid/backend/services/hub-service/internal/models"
	"sensegrid/backend/services/hub-service/internal/repository"
)

// Store interfaces consumed by the services. The repository types satisfy
// them; tests substitute fakes.

// HubStore resolves hub rows.
type HubStore interface {
	GetByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.Hub, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Hub, error)
	GetDefault(ctx context.Context, tenantID uuid.UUID) (*models.Hub, error)
	GetOrCreate(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.Hub, error)
}

// NodeStore resolves node rows and liveness.
type NodeStore interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Node, error)
	GetByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.Node, error)
	GetOrCreate(ctx context.Context, hubID uuid.UUID, externalID string) (*models.Node, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Node, error)
	Locations(ctx context.Context, tenantID uuid.UUID) ([]string, error)
}

// BindingStore resolves bindings with their sensor definitions loaded.
type BindingStore interface {
	GetByEndpoint(ctx context.Context, nodeID uuid.UUID, endpointID int) (*models.Binding, error)
	GetByID(ctx context.Context, nodeID, bindingID uuid.UUID) (*models.Binding, error)
	ListActiveByNode(ctx context.Context, nodeID uuid.UUID) ([]*models.Binding, error)
	FindActiveByCapability(ctx context.Context, nodeID uuid.UUID, measurementType string) (*models.Binding, error)
}

// ReadingStore persists and queries measurement facts.
type ReadingStore interface {
	Insert(ctx context.Context, reading *models.Reading) error
	InsertBatch(ctx context.Context, readings []*models.Reading) error
	Series(ctx context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, from time.Time) ([]models.Reading, error)
	CountWindow(ctx context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, filter repository.WindowFilter) (int, error)
	Window(ctx context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, filter repository.WindowFilter, limit, offset int) ([]models.Reading, error)
	ListSince(ctx context.Context, tenantID uuid.UUID, since time.Time, measurementTypes []string) ([]models.Reading, error)
	MeasurementTypes(ctx context.Context, tenantID uuid.UUID) ([]string, error)
	ListUnsynced(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.Reading, error)
	MarkSynced(ctx context.Context, ids []int64) error
	DeleteRange(ctx context.Context, tenantID, nodeID uuid.UUID, from, to time.Time, bindingID *uuid.UUID, measurementType string) (int64, error)
}

// AlertStore persists and queries alerts.
type AlertStore interface {
	Insert(ctx context.Context, a *models.Alert) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Alert, error)
	GetActiveByScope(ctx context.Context, tenantID, alertTypeID uuid.UUID, hubID, nodeID *uuid.UUID) (*models.Alert, error)
	Acknowledge(ctx context.Context, tenantID, id uuid.UUID, at time.Time) (bool, error)
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]models.Alert, error)
	CountFiltered(ctx context.Context, tenantID uuid.UUID, filter repository.AlertFilter) (int, error)
	ListFiltered(ctx context.Context, tenantID uuid.UUID, filter repository.AlertFilter, limit, offset int) ([]models.Alert, error)
	DeactivateScope(ctx context.Context, tenantID, alertTypeID uuid.UUID, hubID, nodeID *uuid.UUID) error
}

// AlertTypeStore reads the alert-type catalog.
type AlertTypeStore interface {
	GetByCode(ctx context.Context, code string) (*models.AlertType, error)
}

// LiveNotifier pushes committed state changes to live subscribers. Calls are
// non-blocking and best-effort.
type LiveNotifier interface {
	ReadingCreated(r *models.Reading)
	AlertRaised(a *models.Alert)
	AlertAcknowledged(a *models.Alert)
}

// Dispatcher runs work detached from the triggering call path.
type Dispatcher interface {
	Dispatch(name string, run func(ctx context.Context) error)
}

// Bridge mirrors alert open/closed state to the external bridge.
type Bridge interface {
	RegisterContact(ctx context.Context, deviceID, name string) error
	SetContactState(ctx context.Context, deviceID string, open bool) error
}

// Pusher delivers push notifications.
type Pusher interface {
	Send(ctx context.Context, title, body, severity string) error
}

// LivenessStore keeps the fast last-seen cache.
type LivenessStore interface {
	Touch(ctx context.Context, nodeID uuid.UUID, at time.Time) error
}
