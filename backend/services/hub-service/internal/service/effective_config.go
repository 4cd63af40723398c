package service

import (
	"sensegrid/backend/services/hub-service/internal/models"
)

// EffectiveConfig merges a binding's overrides with its sensor's baseline:
// every field is the override when set, otherwise the sensor value. A nil
// binding yields the plain sensor baseline. Calibration coefficients always
// come from the sensor; they are not overridable per binding.
func EffectiveConfig(binding *models.Binding, sensor *models.Sensor) models.EffectiveConfig {
	cfg := models.EffectiveConfig{
		IntervalSeconds: sensor.IntervalSeconds,
		I2CAddress:      sensor.I2CAddress,
		SdaPin:          sensor.SdaPin,
		SclPin:          sensor.SclPin,
		OneWirePin:      sensor.OneWirePin,
		AnalogPin:       sensor.AnalogPin,
		DigitalPin:      sensor.DigitalPin,
		TriggerPin:      sensor.TriggerPin,
		EchoPin:         sensor.EchoPin,
		BaudRate:        sensor.BaudRate,
		Offset:          sensor.Offset,
		Gain:            sensor.Gain,
	}
	if binding == nil {
		return cfg
	}

	if binding.IntervalSecondsOverride != nil {
		cfg.IntervalSeconds = *binding.IntervalSecondsOverride
	}
	if binding.I2CAddressOverride != nil {
		cfg.I2CAddress = binding.I2CAddressOverride
	}
	if binding.SdaPinOverride != nil {
		cfg.SdaPin = binding.SdaPinOverride
	}
	if binding.SclPinOverride != nil {
		cfg.SclPin = binding.SclPinOverride
	}
	if binding.OneWirePinOverride != nil {
		cfg.OneWirePin = binding.OneWirePinOverride
	}
	if binding.AnalogPinOverride != nil {
		cfg.AnalogPin = binding.AnalogPinOverride
	}
	if binding.DigitalPinOverride != nil {
		cfg.DigitalPin = binding.DigitalPinOverride
	}
	if binding.TriggerPinOverride != nil {
		cfg.TriggerPin = binding.TriggerPinOverride
	}
	if binding.EchoPinOverride != nil {
		cfg.EchoPin = binding.EchoPinOverride
	}
	if binding.BaudRateOverride != nil {
		cfg.BaudRate = binding.BaudRateOverride
	}
	return cfg
}

// Calibrate applies the sensor's linear correction to a raw value:
// calibrated = raw*gain + offset. A gain of 0 is legal and yields the
// offset. No unit conversion happens here.
func Calibrate(raw float64, sensor *models.Sensor) float64 {
	return raw*sensor.Gain + sensor.Offset
}
