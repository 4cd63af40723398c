package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/models"
)

func TestBindingCreateDuplicateEndpointConflicts(t *testing.T) {
	bindings := &fakeBindingStore{}
	svc := NewBindingService(bindings, bindings, zap.NewNop())
	nodeID := uuid.New()

	err := svc.Create(context.Background(), &models.Binding{
		NodeID:     nodeID,
		SensorID:   uuid.New(),
		EndpointID: 1,
	})
	require.NoError(t, err)

	err = svc.Create(context.Background(), &models.Binding{
		NodeID:     nodeID,
		SensorID:   uuid.New(),
		EndpointID: 1,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBindingCreateValidation(t *testing.T) {
	bindings := &fakeBindingStore{}
	svc := NewBindingService(bindings, bindings, zap.NewNop())

	err := svc.Create(context.Background(), &models.Binding{EndpointID: 1})
	assert.ErrorIs(t, err, ErrValidation)

	err = svc.Create(context.Background(), &models.Binding{
		NodeID:     uuid.New(),
		SensorID:   uuid.New(),
		EndpointID: -1,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBindingResolveMergesOverrides(t *testing.T) {
	bindings := &fakeBindingStore{}
	svc := NewBindingService(bindings, bindings, zap.NewNop())

	sensor := tempSensor()
	sensor.IntervalSeconds = 60
	binding := &models.Binding{
		ID:                      uuid.New(),
		NodeID:                  uuid.New(),
		SensorID:                sensor.ID,
		EndpointID:              1,
		Active:                  true,
		IntervalSecondsOverride: intPtr(300),
		Sensor:                  sensor,
	}
	bindings.bindings = append(bindings.bindings, binding)

	cfg, err := svc.Resolve(context.Background(), binding.NodeID, binding.ID)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 300, cfg.IntervalSeconds)
	assert.Equal(t, sensor.Gain, cfg.Gain)
	assert.Equal(t, sensor.Offset, cfg.Offset)
}

func TestBindingResolveUnknownReturnsNil(t *testing.T) {
	bindings := &fakeBindingStore{}
	svc := NewBindingService(bindings, bindings, zap.NewNop())

	cfg, err := svc.Resolve(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
