package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensegrid/backend/services/hub-service/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestCalibrate(t *testing.T) {
	tests := []struct {
		name   string
		raw    float64
		gain   float64
		offset float64
		want   float64
	}{
		{name: "typical temperature correction", raw: 21.5, gain: 1.02, offset: 0.5, want: 22.43},
		{name: "identity", raw: 42.0, gain: 1.0, offset: 0.0, want: 42.0},
		{name: "zero gain yields offset", raw: 21.5, gain: 0.0, offset: 3.3, want: 3.3},
		{name: "negative offset", raw: 10.0, gain: 1.0, offset: -2.5, want: 7.5},
		{name: "negative raw", raw: -5.0, gain: 2.0, offset: 1.0, want: -9.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sensor := &models.Sensor{Gain: tt.gain, Offset: tt.offset}
			got := Calibrate(tt.raw, sensor)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEffectiveConfigBaseline(t *testing.T) {
	sensor := &models.Sensor{
		IntervalSeconds: 60,
		I2CAddress:      strPtr("0x76"),
		SdaPin:          intPtr(21),
		SclPin:          intPtr(22),
		BaudRate:        intPtr(9600),
		Offset:          0.5,
		Gain:            1.02,
	}

	cfg := EffectiveConfig(nil, sensor)

	assert.Equal(t, 60, cfg.IntervalSeconds)
	require.NotNil(t, cfg.I2CAddress)
	assert.Equal(t, "0x76", *cfg.I2CAddress)
	require.NotNil(t, cfg.SdaPin)
	assert.Equal(t, 21, *cfg.SdaPin)
	require.NotNil(t, cfg.BaudRate)
	assert.Equal(t, 9600, *cfg.BaudRate)
	assert.Equal(t, 0.5, cfg.Offset)
	assert.Equal(t, 1.02, cfg.Gain)
}

func TestEffectiveConfigOverrides(t *testing.T) {
	sensor := &models.Sensor{
		IntervalSeconds: 60,
		I2CAddress:      strPtr("0x76"),
		SdaPin:          intPtr(21),
		SclPin:          intPtr(22),
		OneWirePin:      intPtr(4),
		Offset:          0.5,
		Gain:            1.02,
	}
	binding := &models.Binding{
		IntervalSecondsOverride: intPtr(300),
		I2CAddressOverride:      strPtr("0x77"),
		SdaPinOverride:          intPtr(25),
	}

	cfg := EffectiveConfig(binding, sensor)

	assert.Equal(t, 300, cfg.IntervalSeconds)
	require.NotNil(t, cfg.I2CAddress)
	assert.Equal(t, "0x77", *cfg.I2CAddress)
	require.NotNil(t, cfg.SdaPin)
	assert.Equal(t, 25, *cfg.SdaPin)

	// Fields without an override keep the baseline.
	require.NotNil(t, cfg.SclPin)
	assert.Equal(t, 22, *cfg.SclPin)
	require.NotNil(t, cfg.OneWirePin)
	assert.Equal(t, 4, *cfg.OneWirePin)

	// Calibration always comes from the sensor.
	assert.Equal(t, 0.5, cfg.Offset)
	assert.Equal(t, 1.02, cfg.Gain)
}

func TestCapabilityUnitLookup(t *testing.T) {
	sensor := &models.Sensor{
		Capabilities: []models.Capability{
			{MeasurementType: "Temperature", Unit: "°C"},
			{MeasurementType: "humidity", Unit: "%"},
		},
	}

	assert.Equal(t, "°C", sensor.CapabilityUnit("temperature"))
	assert.Equal(t, "%", sensor.CapabilityUnit("HUMIDITY"))
	assert.Equal(t, "", sensor.CapabilityUnit("pressure"))
}
