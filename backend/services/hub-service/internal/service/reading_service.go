package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/models"
	"sensegrid/backend/services/hub-service/internal/tenancy"
)

// ReadingService ingests telemetry: it resolves the owning hub/node/binding,
// calibrates the raw value, persists the reading and fans out liveness and
// live-update side effects. Side effects never fail a persisted ingestion.
type ReadingService struct {
	hubs     HubStore
	nodes    NodeStore
	bindings BindingStore
	readings ReadingStore
	liveness LivenessStore
	notifier LiveNotifier
	logger   *zap.Logger
}

func NewReadingService(
	hubs HubStore,
	nodes NodeStore,
	bindings BindingStore,
	readings ReadingStore,
	liveness LivenessStore,
	notifier LiveNotifier,
	logger *zap.Logger,
) *ReadingService {
	return &ReadingService{
		hubs:     hubs,
		nodes:    nodes,
		bindings: bindings,
		readings: readings,
		liveness: liveness,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateReadingInput is a single telemetry sample from a hub uplink.
type CreateReadingInput struct {
	HubID           string
	NodeID          string
	EndpointID      int
	MeasurementType string
	RawValue        float64
	Timestamp       *time.Time
}

// CreateDeviceReadingInput is a sample addressed by device identifier, as
// sent by nodes that talk to the service directly.
type CreateDeviceReadingInput struct {
	DeviceID        string
	EndpointID      *int
	MeasurementType string
	Value           float64
	Unit            string
	Timestamp       *int64
}

// BatchReadingItem is one sample inside an offline-buffered batch.
type BatchReadingItem struct {
	EndpointID      int
	MeasurementType string
	RawValue        float64
	Timestamp       *time.Time
}

// CreateBatchInput carries buffered telemetry uploaded after reconnect.
type CreateBatchInput struct {
	HubID    string
	NodeID   string
	Readings []BatchReadingItem
}

// BatchResult reports per-item outcomes of a batch ingestion.
type BatchResult struct {
	TotalCount   int      `json:"totalCount"`
	SuccessCount int      `json:"successCount"`
	FailedCount  int      `json:"failedCount"`
	Errors       []string `json:"errors,omitempty"`
}

// Create ingests a single reading from a hub uplink. Unknown hubs and nodes
// are created on the fly; an unknown endpoint yields an uncalibrated reading
// with a null binding.
func (s *ReadingService) Create(ctx context.Context, input CreateReadingInput) (*models.Reading, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.NodeID) == "" {
		return nil, fmt.Errorf("%w: node id is required", ErrValidation)
	}
	if strings.TrimSpace(input.MeasurementType) == "" {
		return nil, fmt.Errorf("%w: measurement type is required", ErrValidation)
	}

	hub, err := s.resolveHub(ctx, tenantID, input.HubID)
	if err != nil {
		return nil, err
	}
	node, err := s.nodes.GetOrCreate(ctx, hub.ID, input.NodeID)
	if err != nil {
		return nil, fmt.Errorf("resolve node: %w", err)
	}
	binding, err := s.bindings.GetByEndpoint(ctx, node.ID, input.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("resolve binding: %w", err)
	}

	now := time.Now().UTC()
	ts := now
	if input.Timestamp != nil {
		ts = input.Timestamp.UTC()
	}
	reading := s.buildReading(tenantID, node.ID, binding, input.MeasurementType, input.RawValue, "", ts)

	if err := s.readings.Insert(ctx, reading); err != nil {
		return nil, fmt.Errorf("insert reading: %w", err)
	}

	s.touchLiveness(ctx, node.ID, now)
	s.notifier.ReadingCreated(reading)
	return reading, nil
}

// CreateFromDevice ingests a reading addressed by device identifier, which
// may be a database id or the external identifier. The device must already
// exist.
func (s *ReadingService) CreateFromDevice(ctx context.Context, input CreateDeviceReadingInput) (*models.Reading, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.DeviceID) == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}
	if strings.TrimSpace(input.MeasurementType) == "" {
		return nil, fmt.Errorf("%w: measurement type is required", ErrValidation)
	}

	node, err := s.resolveNode(ctx, tenantID, input.DeviceID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: device %q", ErrNotFound, input.DeviceID)
	}

	var binding *models.Binding
	if input.EndpointID != nil {
		binding, err = s.bindings.GetByEndpoint(ctx, node.ID, *input.EndpointID)
		if err != nil {
			return nil, fmt.Errorf("resolve binding: %w", err)
		}
		if binding != nil && !binding.Active {
			binding = nil
		}
	} else {
		binding, err = s.bindings.FindActiveByCapability(ctx, node.ID, input.MeasurementType)
		if err != nil {
			return nil, fmt.Errorf("resolve binding: %w", err)
		}
	}

	now := time.Now().UTC()
	ts := now
	if input.Timestamp != nil {
		ts = time.Unix(*input.Timestamp, 0).UTC()
	}
	reading := s.buildReading(tenantID, node.ID, binding, input.MeasurementType, input.Value, input.Unit, ts)

	if err := s.readings.Insert(ctx, reading); err != nil {
		return nil, fmt.Errorf("insert reading: %w", err)
	}

	s.touchLiveness(ctx, node.ID, now)
	s.notifier.ReadingCreated(reading)
	return reading, nil
}

// CreateBatch ingests offline-buffered telemetry. Items are processed
// independently: a bad item is counted and reported, the rest still land.
func (s *ReadingService) CreateBatch(ctx context.Context, input CreateBatchInput) (*BatchResult, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.NodeID) == "" {
		return nil, fmt.Errorf("%w: node id is required", ErrValidation)
	}
	if len(input.Readings) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", ErrValidation)
	}

	result := &BatchResult{TotalCount: len(input.Readings)}

	node, err := s.resolveNode(ctx, tenantID, input.NodeID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		result.FailedCount = result.TotalCount
		result.Errors = append(result.Errors, fmt.Sprintf("node %q not found", input.NodeID))
		return result, nil
	}

	active, err := s.bindings.ListActiveByNode(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("load bindings: %w", err)
	}
	byEndpoint := make(map[int]*models.Binding, len(active))
	for _, b := range active {
		byEndpoint[b.EndpointID] = b
	}

	now := time.Now().UTC()
	accepted := make([]*models.Reading, 0, len(input.Readings))
	latestByType := make(map[string]*models.Reading)
	for i, item := range input.Readings {
		if strings.TrimSpace(item.MeasurementType) == "" {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: measurement type is required", i))
			continue
		}
		ts := now
		if item.Timestamp != nil {
			ts = item.Timestamp.UTC()
		}
		reading := s.buildReading(tenantID, node.ID, byEndpoint[item.EndpointID], item.MeasurementType, item.RawValue, "", ts)
		accepted = append(accepted, reading)
		prev := latestByType[reading.MeasurementType]
		if prev == nil || reading.Timestamp.After(prev.Timestamp) {
			latestByType[reading.MeasurementType] = reading
		}
	}

	if len(accepted) > 0 {
		if err := s.readings.InsertBatch(ctx, accepted); err != nil {
			return nil, fmt.Errorf("insert batch: %w", err)
		}
		result.SuccessCount = len(accepted)
		s.touchLiveness(ctx, node.ID, now)
		for _, r := range latestByType {
			s.notifier.ReadingCreated(r)
		}
	}
	return result, nil
}

// Unsynced lists readings not yet uploaded to the remote backend.
func (s *ReadingService) Unsynced(ctx context.Context, limit int) ([]models.Reading, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 500
	}
	return s.readings.ListUnsynced(ctx, tenantID, limit)
}

// MarkSynced flags readings as uploaded.
func (s *ReadingService) MarkSynced(ctx context.Context, ids []int64) error {
	if _, err := tenantFrom(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.readings.MarkSynced(ctx, ids)
}

// DeleteRangeInput selects readings for deletion.
type DeleteRangeInput struct {
	NodeID          uuid.UUID
	From            time.Time
	To              time.Time
	BindingID       *uuid.UUID
	MeasurementType string
}

// DeleteRange removes readings in a time window and returns the count.
func (s *ReadingService) DeleteRange(ctx context.Context, input DeleteRangeInput) (int64, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	if !input.To.After(input.From) {
		return 0, fmt.Errorf("%w: range end must be after start", ErrValidation)
	}
	return s.readings.DeleteRange(ctx, tenantID, input.NodeID, input.From, input.To, input.BindingID, strings.ToLower(strings.TrimSpace(input.MeasurementType)))
}

func (s *ReadingService) resolveHub(ctx context.Context, tenantID uuid.UUID, hubID string) (*models.Hub, error) {
	if strings.TrimSpace(hubID) != "" {
		hub, err := s.hubs.GetOrCreate(ctx, tenantID, hubID)
		if err != nil {
			return nil, fmt.Errorf("resolve hub: %w", err)
		}
		return hub, nil
	}
	hub, err := s.hubs.GetDefault(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve hub: %w", err)
	}
	if hub == nil {
		return nil, fmt.Errorf("%w: no default hub configured", ErrNotFound)
	}
	return hub, nil
}

// resolveNode accepts a database id or the external identifier.
func (s *ReadingService) resolveNode(ctx context.Context, tenantID uuid.UUID, deviceID string) (*models.Node, error) {
	if id, err := uuid.Parse(deviceID); err == nil {
		node, err := s.nodes.GetByID(ctx, tenantID, id)
		if err != nil {
			return nil, fmt.Errorf("resolve node: %w", err)
		}
		if node != nil {
			return node, nil
		}
	}
	node, err := s.nodes.GetByExternalID(ctx, tenantID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("resolve node: %w", err)
	}
	return node, nil
}

func (s *ReadingService) buildReading(tenantID, nodeID uuid.UUID, binding *models.Binding, measurementType string, raw float64, unit string, ts time.Time) *models.Reading {
	mtype := strings.ToLower(strings.TrimSpace(measurementType))
	reading := &models.Reading{
		TenantID:        tenantID,
		NodeID:          nodeID,
		MeasurementType: mtype,
		RawValue:        raw,
		Value:           raw,
		Unit:            unit,
		Timestamp:       ts,
	}
	if binding != nil && binding.Sensor != nil {
		reading.BindingID = &binding.ID
		reading.Value = Calibrate(raw, binding.Sensor)
		if reading.Unit == "" {
			reading.Unit = binding.Sensor.CapabilityUnit(mtype)
		}
	}
	return reading
}

// touchLiveness updates both last-seen stores. Failures are logged and
// swallowed: the reading is already committed.
func (s *ReadingService) touchLiveness(ctx context.Context, nodeID uuid.UUID, at time.Time) {
	if err := s.nodes.TouchLastSeen(ctx, nodeID, at); err != nil {
		s.logger.Warn("failed to update node last seen", zap.String("node_id", nodeID.String()), zap.Error(err))
	}
	if err := s.liveness.Touch(ctx, nodeID, at); err != nil {
		s.logger.Warn("failed to update liveness cache", zap.String("node_id", nodeID.String()), zap.Error(err))
	}
}

func tenantFrom(ctx context.Context) (uuid.UUID, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	return tenantID, nil
}
