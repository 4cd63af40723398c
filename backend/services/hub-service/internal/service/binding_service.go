package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/models"
	"sensegrid/backend/services/hub-service/internal/repository"
)

// bindingWriter is the write surface of the binding repository.
type bindingWriter interface {
	Create(ctx context.Context, b *models.Binding) error
}

// BindingService manages node-to-sensor assignments and exposes their
// resolved configuration.
type BindingService struct {
	bindings BindingStore
	writer   bindingWriter
	logger   *zap.Logger
}

func NewBindingService(bindings BindingStore, writer bindingWriter, logger *zap.Logger) *BindingService {
	return &BindingService{bindings: bindings, writer: writer, logger: logger}
}

// Create binds a sensor to a node endpoint. A second binding on the same
// endpoint is a conflict.
func (s *BindingService) Create(ctx context.Context, binding *models.Binding) error {
	if binding.NodeID == uuid.Nil || binding.SensorID == uuid.Nil {
		return fmt.Errorf("%w: node and sensor ids are required", ErrValidation)
	}
	if binding.EndpointID < 0 {
		return fmt.Errorf("%w: endpoint id must not be negative", ErrValidation)
	}
	if binding.ID == uuid.Nil {
		binding.ID = uuid.New()
	}
	if err := s.writer.Create(ctx, binding); err != nil {
		if errors.Is(err, repository.ErrDuplicateEndpoint) {
			return fmt.Errorf("%w: endpoint %d already bound on node %s", ErrConflict, binding.EndpointID, binding.NodeID)
		}
		return fmt.Errorf("create binding: %w", err)
	}
	s.logger.Info("binding created",
		zap.String("binding_id", binding.ID.String()),
		zap.String("node_id", binding.NodeID.String()),
		zap.Int("endpoint_id", binding.EndpointID))
	return nil
}

// Resolve returns the effective configuration of a binding, or (nil, nil)
// when the binding does not exist.
func (s *BindingService) Resolve(ctx context.Context, nodeID, bindingID uuid.UUID) (*models.EffectiveConfig, error) {
	binding, err := s.bindings.GetByID(ctx, nodeID, bindingID)
	if err != nil {
		return nil, fmt.Errorf("load binding: %w", err)
	}
	if binding == nil || binding.Sensor == nil {
		return nil, nil
	}
	cfg := EffectiveConfig(binding, binding.Sensor)
	return &cfg, nil
}
