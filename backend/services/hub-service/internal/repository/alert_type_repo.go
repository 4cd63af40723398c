package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"sensegrid/backend/services/hub-service/internal/models"
)

// AlertTypeRepository reads the alert-type catalog.
type AlertTypeRepository struct {
	db *sql.DB
}

// NewAlertTypeRepository returns repository.
func NewAlertTypeRepository(db *sql.DB) *AlertTypeRepository {
	return &AlertTypeRepository{db: db}
}

// GetByCode returns the alert type with the given code (case-insensitive),
// or nil.
func (r *AlertTypeRepository) GetByCode(ctx context.Context, code string) (*models.AlertType, error) {
	const query = `
		SELECT id, code, name, default_level, is_global
		FROM alert_types
		WHERE code = $1
	`
	var at models.AlertType
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(code)).Scan(
		&at.ID, &at.Code, &at.Name, &at.DefaultLevel, &at.IsGlobal,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

// List returns the whole alert-type catalog.
func (r *AlertTypeRepository) List(ctx context.Context) ([]models.AlertType, error) {
	const query = `
		SELECT id, code, name, default_level, is_global
		FROM alert_types
		ORDER BY code
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []models.AlertType
	for rows.Next() {
		var at models.AlertType
		if err := rows.Scan(&at.ID, &at.Code, &at.Name, &at.DefaultLevel, &at.IsGlobal); err != nil {
			return nil, err
		}
		types = append(types, at)
	}
	return types, rows.Err()
}
