package tenancy

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey struct{}

// ErrMissingTenant is returned when a call reaches the service layer without
// a tenant bound to its context.
var ErrMissingTenant = errors.New("tenancy: no tenant in context")

// WithTenant binds the tenant id to the context. The transport layer does
// this once per request; everything below reads it back explicitly.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext returns the tenant id bound to the context.
func FromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrMissingTenant
	}
	return id, nil
}
