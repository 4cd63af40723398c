package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"sensegrid/backend/services/hub-service/internal/models"
)

// NodeRepository persists node rows.
type NodeRepository struct {
	db *sql.DB
}

// NewNodeRepository returns repository.
func NewNodeRepository(db *sql.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

const nodeColumns = `n.id, n.hub_id, n.external_id, n.name, n.location_name, n.last_seen`

func scanNode(scanner interface{ Scan(...any) error }) (*models.Node, error) {
	var n models.Node
	var location sql.NullString
	var lastSeen sql.NullTime
	err := scanner.Scan(&n.ID, &n.HubID, &n.ExternalID, &n.Name, &location, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if location.Valid {
		s := location.String
		n.LocationName = &s
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		n.LastSeen = &t
	}
	return &n, nil
}

// GetByID returns the node by primary key, scoped to the tenant, or nil.
func (r *NodeRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Node, error) {
	const query = `
		SELECT ` + nodeColumns + `
		FROM nodes n
		JOIN hubs h ON h.id = n.hub_id
		WHERE h.tenant_id = $1 AND n.id = $2
	`
	return scanNode(r.db.QueryRowContext(ctx, query, tenantID, id))
}

// GetByExternalID returns the node by its device identifier, or nil.
func (r *NodeRepository) GetByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.Node, error) {
	const query = `
		SELECT ` + nodeColumns + `
		FROM nodes n
		JOIN hubs h ON h.id = n.hub_id
		WHERE h.tenant_id = $1 AND n.external_id = $2
	`
	return scanNode(r.db.QueryRowContext(ctx, query, tenantID, externalID))
}

// GetOrCreate returns the node with the given device identifier on the hub,
// auto-registering it on first contact.
func (r *NodeRepository) GetOrCreate(ctx context.Context, hubID uuid.UUID, externalID string) (*models.Node, error) {
	const selectQuery = `
		SELECT ` + nodeColumns + `
		FROM nodes n
		WHERE n.hub_id = $1 AND n.external_id = $2
	`
	node, err := scanNode(r.db.QueryRowContext(ctx, selectQuery, hubID, externalID))
	if err != nil || node != nil {
		return node, err
	}

	const insertQuery = `
		INSERT INTO nodes (id, hub_id, external_id, name, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	created := &models.Node{
		ID:         uuid.New(),
		HubID:      hubID,
		ExternalID: externalID,
		Name:       externalID,
	}
	if _, err := r.db.ExecContext(ctx, insertQuery, created.ID, hubID, externalID, created.Name); err != nil {
		return nil, err
	}
	return created, nil
}

// TouchLastSeen records node liveness.
func (r *NodeRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `UPDATE nodes SET last_seen = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at.UTC())
	return err
}

// ListByTenant returns all nodes of the tenant.
func (r *NodeRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Node, error) {
	const query = `
		SELECT ` + nodeColumns + `
		FROM nodes n
		JOIN hubs h ON h.id = n.hub_id
		WHERE h.tenant_id = $1
		ORDER BY n.name
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// Locations returns the distinct declared location names of the tenant's nodes.
func (r *NodeRepository) Locations(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	const query = `
		SELECT DISTINCT n.location_name
		FROM nodes n
		JOIN hubs h ON h.id = n.hub_id
		WHERE h.tenant_id = $1 AND n.location_name IS NOT NULL
		ORDER BY n.location_name
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		locations = append(locations, name)
	}
	return locations, rows.Err()
}
