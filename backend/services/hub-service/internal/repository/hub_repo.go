package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"sensegrid/backend/services/hub-service/internal/models"
)

// HubRepository persists hub rows.
type HubRepository struct {
	db *sql.DB
}

// NewHubRepository returns repository.
func NewHubRepository(db *sql.DB) *HubRepository {
	return &HubRepository{db: db}
}

const hubColumns = `id, tenant_id, external_id, name, is_default, last_seen`

func scanHub(row *sql.Row) (*models.Hub, error) {
	var h models.Hub
	var lastSeen sql.NullTime
	err := row.Scan(&h.ID, &h.TenantID, &h.ExternalID, &h.Name, &h.IsDefault, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		h.LastSeen = &t
	}
	return &h, nil
}

// GetByExternalID returns the hub with the given opaque identifier, or nil.
func (r *HubRepository) GetByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.Hub, error) {
	const query = `
		SELECT ` + hubColumns + `
		FROM hubs
		WHERE tenant_id = $1 AND external_id = $2
	`
	return scanHub(r.db.QueryRowContext(ctx, query, tenantID, externalID))
}

// GetDefault returns the tenant's default hub, or nil.
func (r *HubRepository) GetDefault(ctx context.Context, tenantID uuid.UUID) (*models.Hub, error) {
	const query = `
		SELECT ` + hubColumns + `
		FROM hubs
		WHERE tenant_id = $1 AND is_default
		ORDER BY name
		LIMIT 1
	`
	return scanHub(r.db.QueryRowContext(ctx, query, tenantID))
}

// GetByID returns the hub row, or nil.
func (r *HubRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Hub, error) {
	const query = `
		SELECT ` + hubColumns + `
		FROM hubs
		WHERE tenant_id = $1 AND id = $2
	`
	return scanHub(r.db.QueryRowContext(ctx, query, tenantID, id))
}

// GetOrCreate returns the hub with the given external identifier, creating it
// on first contact.
func (r *HubRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.Hub, error) {
	hub, err := r.GetByExternalID(ctx, tenantID, externalID)
	if err != nil || hub != nil {
		return hub, err
	}

	const query = `
		INSERT INTO hubs (id, tenant_id, external_id, name, is_default, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())
	`
	created := &models.Hub{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ExternalID: externalID,
		Name:       externalID,
	}
	if _, err := r.db.ExecContext(ctx, query, created.ID, tenantID, externalID, created.Name); err != nil {
		return nil, err
	}
	return created, nil
}

// TouchLastSeen records hub liveness.
func (r *HubRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `UPDATE hubs SET last_seen = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at.UTC())
	return err
}
