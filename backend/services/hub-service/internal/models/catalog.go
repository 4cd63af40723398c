package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Hub is a gateway device owning a set of nodes.
type Hub struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ExternalID string
	Name       string
	IsDefault  bool
	LastSeen   *time.Time
}

// Node is a field device bound to a hub. LocationName is the declared
// installation place used for dashboard grouping; nil when not assigned yet.
type Node struct {
	ID           uuid.UUID
	HubID        uuid.UUID
	ExternalID   string
	Name         string
	LocationName *string
	LastSeen     *time.Time
}

// Location returns the declared location name or the unknown placeholder.
func (n *Node) Location() string {
	if n.LocationName == nil || *n.LocationName == "" {
		return "Unbekannt"
	}
	return *n.LocationName
}

// Capability declares one measurement type a sensor can produce.
type Capability struct {
	MeasurementType string
	DisplayName     string
	Unit            string
}

// Sensor is a physical sensor definition: hardware addressing defaults,
// timing, calibration coefficients and declared capabilities.
type Sensor struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Code            string
	Name            string
	Model           *string
	Category        string
	Color           *string
	IntervalSeconds int
	I2CAddress      *string
	SdaPin          *int
	SclPin          *int
	OneWirePin      *int
	AnalogPin       *int
	DigitalPin      *int
	TriggerPin      *int
	EchoPin         *int
	BaudRate        *int
	Offset          float64
	Gain            float64
	Capabilities    []Capability
}

// Capability returns the declared capability for a measurement type,
// matched case-insensitively, or nil.
func (s *Sensor) Capability(measurementType string) *Capability {
	for i := range s.Capabilities {
		if strings.EqualFold(s.Capabilities[i].MeasurementType, measurementType) {
			return &s.Capabilities[i]
		}
	}
	return nil
}

// CapabilityUnit returns the unit of the matching capability or "".
func (s *Sensor) CapabilityUnit(measurementType string) string {
	if c := s.Capability(measurementType); c != nil {
		return c.Unit
	}
	return ""
}

// Binding assigns a sensor to a node endpoint. Override fields are nil when
// the sensor baseline applies; calibration is never overridable here.
type Binding struct {
	ID         uuid.UUID
	NodeID     uuid.UUID
	SensorID   uuid.UUID
	EndpointID int
	Active     bool
	LastSeenAt *time.Time

	IntervalSecondsOverride *int
	I2CAddressOverride      *string
	SdaPinOverride          *int
	SclPinOverride          *int
	OneWirePinOverride      *int
	AnalogPinOverride       *int
	DigitalPinOverride      *int
	TriggerPinOverride      *int
	EchoPinOverride         *int
	BaudRateOverride        *int

	// Sensor is populated by the repository when the binding is loaded for
	// ingestion or dashboard use.
	Sensor *Sensor
}

// EffectiveConfig is the merged configuration for a binding: every field is
// the binding override when set, otherwise the sensor baseline. Derived only,
// never persisted.
type EffectiveConfig struct {
	IntervalSeconds int
	I2CAddress      *string
	SdaPin          *int
	SclPin          *int
	OneWirePin      *int
	AnalogPin       *int
	DigitalPin      *int
	TriggerPin      *int
	EchoPin         *int
	BaudRate        *int
	Offset          float64
	Gain            float64
}
