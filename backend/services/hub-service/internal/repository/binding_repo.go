package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"sensegrid/backend/services/hub-service/internal/models"
)

// ErrDuplicateEndpoint is returned when a binding reuses an endpoint id
// already taken on the same node.
var ErrDuplicateEndpoint = errors.New("repository: endpoint id already bound on node")

// BindingRepository persists node-sensor bindings and loads them together
// with their sensor definition and capabilities.
type BindingRepository struct {
	db *sql.DB
}

// NewBindingRepository returns repository.
func NewBindingRepository(db *sql.DB) *BindingRepository {
	return &BindingRepository{db: db}
}

const bindingColumns = `
	b.id, b.node_id, b.sensor_id, b.endpoint_id, b.active, b.last_seen_at,
	b.interval_seconds_override, b.i2c_address_override, b.sda_pin_override,
	b.scl_pin_override, b.onewire_pin_override, b.analog_pin_override,
	b.digital_pin_override, b.trigger_pin_override, b.echo_pin_override,
	b.baud_rate_override,
	s.id, s.tenant_id, s.code, s.name, s.model, s.category, s.color,
	s.interval_seconds, s.i2c_address, s.sda_pin, s.scl_pin, s.onewire_pin,
	s.analog_pin, s.digital_pin, s.trigger_pin, s.echo_pin, s.baud_rate,
	s.offset_correction, s.gain_correction`

func scanBinding(scanner interface{ Scan(...any) error }) (*models.Binding, error) {
	var b models.Binding
	var s models.Sensor
	var lastSeen sql.NullTime
	var intervalOvr, sdaOvr, sclOvr, oneWireOvr, analogOvr, digitalOvr, triggerOvr, echoOvr, baudOvr sql.NullInt64
	var i2cOvr sql.NullString
	var model, color, i2c sql.NullString
	var sda, scl, oneWire, analog, digital, trigger, echo, baud sql.NullInt64

	err := scanner.Scan(
		&b.ID, &b.NodeID, &b.SensorID, &b.EndpointID, &b.Active, &lastSeen,
		&intervalOvr, &i2cOvr, &sdaOvr, &sclOvr, &oneWireOvr, &analogOvr,
		&digitalOvr, &triggerOvr, &echoOvr, &baudOvr,
		&s.ID, &s.TenantID, &s.Code, &s.Name, &model, &s.Category, &color,
		&s.IntervalSeconds, &i2c, &sda, &scl, &oneWire,
		&analog, &digital, &trigger, &echo, &baud,
		&s.Offset, &s.Gain,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastSeen.Valid {
		t := lastSeen.Time
		b.LastSeenAt = &t
	}
	b.IntervalSecondsOverride = nullableInt(intervalOvr)
	b.I2CAddressOverride = nullableString(i2cOvr)
	b.SdaPinOverride = nullableInt(sdaOvr)
	b.SclPinOverride = nullableInt(sclOvr)
	b.OneWirePinOverride = nullableInt(oneWireOvr)
	b.AnalogPinOverride = nullableInt(analogOvr)
	b.DigitalPinOverride = nullableInt(digitalOvr)
	b.TriggerPinOverride = nullableInt(triggerOvr)
	b.EchoPinOverride = nullableInt(echoOvr)
	b.BaudRateOverride = nullableInt(baudOvr)

	s.Model = nullableString(model)
	s.Color = nullableString(color)
	s.I2CAddress = nullableString(i2c)
	s.SdaPin = nullableInt(sda)
	s.SclPin = nullableInt(scl)
	s.OneWirePin = nullableInt(oneWire)
	s.AnalogPin = nullableInt(analog)
	s.DigitalPin = nullableInt(digital)
	s.TriggerPin = nullableInt(trigger)
	s.EchoPin = nullableInt(echo)
	s.BaudRate = nullableInt(baud)

	b.Sensor = &s
	return &b, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func (r *BindingRepository) loadCapabilities(ctx context.Context, bindings ...*models.Binding) error {
	if len(bindings) == 0 {
		return nil
	}

	sensors := make(map[uuid.UUID]*models.Sensor, len(bindings))
	ids := make([]any, 0, len(bindings))
	placeholders := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if b.Sensor == nil {
			continue
		}
		if _, seen := sensors[b.Sensor.ID]; seen {
			continue
		}
		sensors[b.Sensor.ID] = b.Sensor
		ids = append(ids, b.Sensor.ID)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(ids)))
	}
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		SELECT sensor_id, measurement_type, display_name, unit
		FROM sensor_capabilities
		WHERE sensor_id IN (%s)
		ORDER BY measurement_type
	`, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sensorID uuid.UUID
		var cap models.Capability
		if err := rows.Scan(&sensorID, &cap.MeasurementType, &cap.DisplayName, &cap.Unit); err != nil {
			return err
		}
		if sensor, ok := sensors[sensorID]; ok {
			sensor.Capabilities = append(sensor.Capabilities, cap)
		}
	}
	return rows.Err()
}

// GetByEndpoint returns the binding at the endpoint id of the node, with its
// sensor and capabilities loaded, or nil.
func (r *BindingRepository) GetByEndpoint(ctx context.Context, nodeID uuid.UUID, endpointID int) (*models.Binding, error) {
	const query = `
		SELECT ` + bindingColumns + `
		FROM bindings b
		JOIN sensors s ON s.id = b.sensor_id
		WHERE b.node_id = $1 AND b.endpoint_id = $2
	`
	binding, err := scanBinding(r.db.QueryRowContext(ctx, query, nodeID, endpointID))
	if err != nil || binding == nil {
		return binding, err
	}
	return binding, r.loadCapabilities(ctx, binding)
}

// GetByID returns the binding on the node, with sensor and capabilities, or nil.
func (r *BindingRepository) GetByID(ctx context.Context, nodeID, bindingID uuid.UUID) (*models.Binding, error) {
	const query = `
		SELECT ` + bindingColumns + `
		FROM bindings b
		JOIN sensors s ON s.id = b.sensor_id
		WHERE b.node_id = $1 AND b.id = $2
	`
	binding, err := scanBinding(r.db.QueryRowContext(ctx, query, nodeID, bindingID))
	if err != nil || binding == nil {
		return binding, err
	}
	return binding, r.loadCapabilities(ctx, binding)
}

// ListActiveByNode returns the active bindings of the node, with sensors and
// capabilities loaded.
func (r *BindingRepository) ListActiveByNode(ctx context.Context, nodeID uuid.UUID) ([]*models.Binding, error) {
	const query = `
		SELECT ` + bindingColumns + `
		FROM bindings b
		JOIN sensors s ON s.id = b.sensor_id
		WHERE b.node_id = $1 AND b.active
		ORDER BY b.endpoint_id
	`
	rows, err := r.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*models.Binding
	for rows.Next() {
		binding, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, binding)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bindings, r.loadCapabilities(ctx, bindings...)
}

// FindActiveByCapability returns an active binding on the node whose sensor
// declares the measurement type, or nil. Used when a payload carries no
// endpoint id.
func (r *BindingRepository) FindActiveByCapability(ctx context.Context, nodeID uuid.UUID, measurementType string) (*models.Binding, error) {
	const query = `
		SELECT ` + bindingColumns + `
		FROM bindings b
		JOIN sensors s ON s.id = b.sensor_id
		WHERE b.node_id = $1 AND b.active
		  AND EXISTS (
			SELECT 1 FROM sensor_capabilities c
			WHERE c.sensor_id = s.id AND LOWER(c.measurement_type) = LOWER($2)
		  )
		ORDER BY b.endpoint_id
		LIMIT 1
	`
	binding, err := scanBinding(r.db.QueryRowContext(ctx, query, nodeID, measurementType))
	if err != nil || binding == nil {
		return binding, err
	}
	return binding, r.loadCapabilities(ctx, binding)
}

// Create inserts a binding. A duplicate endpoint id on the node surfaces as
// ErrDuplicateEndpoint.
func (r *BindingRepository) Create(ctx context.Context, b *models.Binding) error {
	const query = `
		INSERT INTO bindings (
			id, node_id, sensor_id, endpoint_id, active,
			interval_seconds_override, i2c_address_override, sda_pin_override,
			scl_pin_override, onewire_pin_override, analog_pin_override,
			digital_pin_override, trigger_pin_override, echo_pin_override,
			baud_rate_override, assigned_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	`
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.NodeID, b.SensorID, b.EndpointID, b.Active,
		b.IntervalSecondsOverride, b.I2CAddressOverride, b.SdaPinOverride,
		b.SclPinOverride, b.OneWirePinOverride, b.AnalogPinOverride,
		b.DigitalPinOverride, b.TriggerPinOverride, b.EchoPinOverride,
		b.BaudRateOverride,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEndpoint
	}
	return err
}
