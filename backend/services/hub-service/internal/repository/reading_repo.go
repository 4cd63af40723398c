package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sensegrid/backend/services/hub-service/internal/models"
)

// ReadingRepository persists measurement facts. Rows are append-only except
// for the synced flag.
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository returns repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

const readingColumns = `id, tenant_id, node_id, binding_id, measurement_type, raw_value, value, unit, timestamp, synced`

func scanReading(scanner interface{ Scan(...any) error }) (*models.Reading, error) {
	var r models.Reading
	var bindingID uuid.NullUUID
	err := scanner.Scan(
		&r.ID, &r.TenantID, &r.NodeID, &bindingID, &r.MeasurementType,
		&r.RawValue, &r.Value, &r.Unit, &r.Timestamp, &r.Synced,
	)
	if err != nil {
		return nil, err
	}
	if bindingID.Valid {
		id := bindingID.UUID
		r.BindingID = &id
	}
	return &r, nil
}

func (r *ReadingRepository) queryReadings(ctx context.Context, query string, args ...any) ([]models.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *reading)
	}
	return readings, rows.Err()
}

// Insert stores one reading and fills its id.
func (r *ReadingRepository) Insert(ctx context.Context, reading *models.Reading) error {
	const query = `
		INSERT INTO readings (tenant_id, node_id, binding_id, measurement_type, raw_value, value, unit, timestamp, synced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		reading.TenantID, reading.NodeID, reading.BindingID, reading.MeasurementType,
		reading.RawValue, reading.Value, reading.Unit, reading.Timestamp.UTC(), reading.Synced,
	).Scan(&reading.ID)
}

// InsertBatch stores readings in a single transaction.
func (r *ReadingRepository) InsertBatch(ctx context.Context, readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO readings (tenant_id, node_id, binding_id, measurement_type, raw_value, value, unit, timestamp, synced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	for _, reading := range readings {
		err := tx.QueryRowContext(ctx, query,
			reading.TenantID, reading.NodeID, reading.BindingID, reading.MeasurementType,
			reading.RawValue, reading.Value, reading.Unit, reading.Timestamp.UTC(), reading.Synced,
		).Scan(&reading.ID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Series returns the readings of one (node, binding, measurement type)
// selector since the given time, oldest first. Feeds chart aggregation.
func (r *ReadingRepository) Series(ctx context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, from time.Time) ([]models.Reading, error) {
	const query = `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE tenant_id = $1 AND node_id = $2 AND binding_id = $3
		  AND LOWER(measurement_type) = LOWER($4) AND timestamp >= $5
		ORDER BY timestamp
	`
	return r.queryReadings(ctx, query, tenantID, nodeID, bindingID, measurementType, from.UTC())
}

// WindowFilter bounds a readings window query.
type WindowFilter struct {
	From *time.Time
	To   *time.Time
}

func (f WindowFilter) apply(conditions []string, args []any) ([]string, []any) {
	if f.From != nil {
		args = append(args, f.From.UTC())
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, f.To.UTC())
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	return conditions, args
}

// CountWindow counts readings of the selector inside the window.
func (r *ReadingRepository) CountWindow(ctx context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, filter WindowFilter) (int, error) {
	conditions := []string{
		"tenant_id = $1", "node_id = $2", "binding_id = $3",
		"LOWER(measurement_type) = LOWER($4)",
	}
	args := []any{tenantID, nodeID, bindingID, measurementType}
	conditions, args = filter.apply(conditions, args)

	query := "SELECT COUNT(*) FROM readings WHERE " + strings.Join(conditions, " AND ")
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Window returns readings of the selector inside the window, newest first.
// limit <= 0 disables paging.
func (r *ReadingRepository) Window(ctx context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, filter WindowFilter, limit, offset int) ([]models.Reading, error) {
	conditions := []string{
		"tenant_id = $1", "node_id = $2", "binding_id = $3",
		"LOWER(measurement_type) = LOWER($4)",
	}
	args := []any{tenantID, nodeID, bindingID, measurementType}
	conditions, args = filter.apply(conditions, args)

	query := "SELECT " + readingColumns + " FROM readings WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY timestamp DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.queryReadings(ctx, query, args...)
}

// ListSince returns all tenant readings since the given time, oldest first,
// optionally restricted to measurement types. Feeds the dashboard.
func (r *ReadingRepository) ListSince(ctx context.Context, tenantID uuid.UUID, since time.Time, measurementTypes []string) ([]models.Reading, error) {
	conditions := []string{"tenant_id = $1", "timestamp >= $2"}
	args := []any{tenantID, since.UTC()}

	if len(measurementTypes) > 0 {
		placeholders := make([]string, 0, len(measurementTypes))
		for _, mt := range measurementTypes {
			args = append(args, strings.ToLower(mt))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("LOWER(measurement_type) IN (%s)", strings.Join(placeholders, ", ")))
	}

	query := "SELECT " + readingColumns + " FROM readings WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY timestamp"
	return r.queryReadings(ctx, query, args...)
}

// MeasurementTypes returns the distinct measurement types the tenant has
// readings for.
func (r *ReadingRepository) MeasurementTypes(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	const query = `
		SELECT DISTINCT measurement_type
		FROM readings
		WHERE tenant_id = $1
		ORDER BY measurement_type
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var mt string
		if err := rows.Scan(&mt); err != nil {
			return nil, err
		}
		types = append(types, mt)
	}
	return types, rows.Err()
}

// ListUnsynced returns readings not yet uploaded to the remote store, oldest
// first.
func (r *ReadingRepository) ListUnsynced(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.Reading, error) {
	const query = `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE tenant_id = $1 AND NOT synced
		ORDER BY timestamp
		LIMIT $2
	`
	return r.queryReadings(ctx, query, tenantID, limit)
}

// MarkSynced flips the synced flag for the given reading ids.
func (r *ReadingRepository) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("UPDATE readings SET synced = true WHERE id IN (%s)", strings.Join(placeholders, ", "))
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteRange removes readings of a node inside [from, to], optionally
// narrowed to a binding and measurement type. Returns the removed count.
func (r *ReadingRepository) DeleteRange(ctx context.Context, tenantID, nodeID uuid.UUID, from, to time.Time, bindingID *uuid.UUID, measurementType string) (int64, error) {
	conditions := []string{"tenant_id = $1", "node_id = $2", "timestamp >= $3", "timestamp <= $4"}
	args := []any{tenantID, nodeID, from.UTC(), to.UTC()}

	if bindingID != nil {
		args = append(args, *bindingID)
		conditions = append(conditions, fmt.Sprintf("binding_id = $%d", len(args)))
	}
	if measurementType != "" {
		args = append(args, strings.ToLower(measurementType))
		conditions = append(conditions, fmt.Sprintf("LOWER(measurement_type) = $%d", len(args)))
	}

	query := "DELETE FROM readings WHERE " + strings.Join(conditions, " AND ")
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
