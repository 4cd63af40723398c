package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sensegrid/backend/services/hub-service/internal/models"
)

// AlertRepository persists alerts. It is the only writer of the active and
// acknowledged_at columns.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository returns repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	a.id, a.tenant_id, a.alert_type_id, t.code, a.hub_id, a.node_id,
	a.level, a.source, a.message, a.recommendation, a.active,
	a.created_at, a.acknowledged_at`

const alertFrom = `
	FROM alerts a
	JOIN alert_types t ON t.id = a.alert_type_id`

func scanAlert(scanner interface{ Scan(...any) error }) (*models.Alert, error) {
	var a models.Alert
	var hubID, nodeID uuid.NullUUID
	var recommendation sql.NullString
	var acknowledgedAt sql.NullTime

	err := scanner.Scan(
		&a.ID, &a.TenantID, &a.AlertTypeID, &a.TypeCode, &hubID, &nodeID,
		&a.Severity, &a.Source, &a.Message, &recommendation, &a.Active,
		&a.CreatedAt, &acknowledgedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if hubID.Valid {
		id := hubID.UUID
		a.HubID = &id
	}
	if nodeID.Valid {
		id := nodeID.UUID
		a.NodeID = &id
	}
	if recommendation.Valid {
		s := recommendation.String
		a.Recommendation = &s
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		a.AcknowledgedAt = &t
	}
	return &a, nil
}

// Insert stores a new alert row.
func (r *AlertRepository) Insert(ctx context.Context, a *models.Alert) error {
	const query = `
		INSERT INTO alerts (id, tenant_id, alert_type_id, hub_id, node_id, level, source, message, recommendation, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.TenantID, a.AlertTypeID, a.HubID, a.NodeID,
		a.Severity, a.Source, a.Message, a.Recommendation, a.Active, a.CreatedAt.UTC(),
	)
	return err
}

// GetByID returns the alert, or nil.
func (r *AlertRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Alert, error) {
	const query = `SELECT` + alertColumns + alertFrom + `
		WHERE a.tenant_id = $1 AND a.id = $2
	`
	return scanAlert(r.db.QueryRowContext(ctx, query, tenantID, id))
}

// GetActiveByScope returns the active alert of the given type for exactly
// this hub/node scope, or nil. Scope nils must match stored nulls, so the
// comparison uses IS NOT DISTINCT FROM.
func (r *AlertRepository) GetActiveByScope(ctx context.Context, tenantID, alertTypeID uuid.UUID, hubID, nodeID *uuid.UUID) (*models.Alert, error) {
	const query = `SELECT` + alertColumns + alertFrom + `
		WHERE a.tenant_id = $1 AND a.alert_type_id = $2 AND a.active
		  AND a.hub_id IS NOT DISTINCT FROM $3
		  AND a.node_id IS NOT DISTINCT FROM $4
		ORDER BY a.created_at DESC
		LIMIT 1
	`
	return scanAlert(r.db.QueryRowContext(ctx, query, tenantID, alertTypeID, hubID, nodeID))
}

// Acknowledge marks the alert inactive with the given acknowledge time.
// Returns false when no row matched.
func (r *AlertRepository) Acknowledge(ctx context.Context, tenantID, id uuid.UUID, at time.Time) (bool, error) {
	const query = `
		UPDATE alerts
		SET active = false, acknowledged_at = $3
		WHERE tenant_id = $1 AND id = $2
	`
	result, err := r.db.ExecContext(ctx, query, tenantID, id, at.UTC())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// ListActive returns active alerts, most severe first, newest first within a
// severity.
func (r *AlertRepository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]models.Alert, error) {
	const query = `SELECT` + alertColumns + alertFrom + `
		WHERE a.tenant_id = $1 AND a.active
		ORDER BY a.level DESC, a.created_at DESC
	`
	return r.queryAlerts(ctx, query, tenantID)
}

// AlertFilter narrows a filtered alert listing. Nil fields are ignored;
// set fields combine with AND.
type AlertFilter struct {
	HubID        *uuid.UUID
	NodeID       *uuid.UUID
	TypeCode     *string
	Severity     *models.Severity
	Source       *string
	Active       *bool
	Acknowledged *bool
	From         *time.Time
	To           *time.Time
}

func (f AlertFilter) conditions(args []any) ([]string, []any) {
	var conditions []string
	add := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if f.HubID != nil {
		add("a.hub_id = $%d", *f.HubID)
	}
	if f.NodeID != nil {
		add("a.node_id = $%d", *f.NodeID)
	}
	if f.TypeCode != nil {
		add("t.code = $%d", strings.ToLower(*f.TypeCode))
	}
	if f.Severity != nil {
		add("a.level = $%d", *f.Severity)
	}
	if f.Source != nil {
		add("a.source = $%d", *f.Source)
	}
	if f.Active != nil {
		add("a.active = $%d", *f.Active)
	}
	if f.Acknowledged != nil {
		if *f.Acknowledged {
			conditions = append(conditions, "a.acknowledged_at IS NOT NULL")
		} else {
			conditions = append(conditions, "a.acknowledged_at IS NULL")
		}
	}
	if f.From != nil {
		add("a.created_at >= $%d", f.From.UTC())
	}
	if f.To != nil {
		add("a.created_at <= $%d", f.To.UTC())
	}
	return conditions, args
}

// CountFiltered counts alerts matching the filter.
func (r *AlertRepository) CountFiltered(ctx context.Context, tenantID uuid.UUID, filter AlertFilter) (int, error) {
	args := []any{tenantID}
	conditions, args := filter.conditions(args)
	where := append([]string{"a.tenant_id = $1"}, conditions...)

	query := "SELECT COUNT(*)" + alertFrom + " WHERE " + strings.Join(where, " AND ")
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListFiltered returns alerts matching the filter, most severe and newest
// first, with offset/limit paging.
func (r *AlertRepository) ListFiltered(ctx context.Context, tenantID uuid.UUID, filter AlertFilter, limit, offset int) ([]models.Alert, error) {
	args := []any{tenantID}
	conditions, args := filter.conditions(args)
	where := append([]string{"a.tenant_id = $1"}, conditions...)

	query := "SELECT" + alertColumns + alertFrom + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY a.level DESC, a.created_at DESC"
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	return r.queryAlerts(ctx, query, args...)
}

// DeactivateScope clears all active alerts of the type for the hub/node
// scope. Used when an offline entity reports again.
func (r *AlertRepository) DeactivateScope(ctx context.Context, tenantID, alertTypeID uuid.UUID, hubID, nodeID *uuid.UUID) error {
	const query = `
		UPDATE alerts
		SET active = false
		WHERE tenant_id = $1 AND alert_type_id = $2 AND active
		  AND hub_id IS NOT DISTINCT FROM $3
		  AND node_id IS NOT DISTINCT FROM $4
	`
	_, err := r.db.ExecContext(ctx, query, tenantID, alertTypeID, hubID, nodeID)
	return err
}

func (r *AlertRepository) queryAlerts(ctx context.Context, query string, args ...any) ([]models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}
