package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/models"
	"sensegrid/backend/services/hub-service/internal/repository"
	"sensegrid/backend/services/hub-service/internal/tenancy"
)

// Fixed alert-type codes used by the liveness watchers.
const (
	AlertCodeNodeOffline = "node_offline"
	AlertCodeHubOffline  = "hub_offline"
)

// CreateAlertInput raises an alert. Hub and node scope are optional and
// addressed by external identifier; an unresolvable identifier drops the
// association instead of failing.
type CreateAlertInput struct {
	TypeCode       string
	Message        string
	Recommendation *string
	HubExternalID  string
	NodeExternalID string
	Severity       *models.Severity
	Source         string
}

// AlertPage is one page of the filtered alert listing.
type AlertPage struct {
	Items      []models.Alert `json:"items"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// AlertService owns the alert lifecycle: deduplicated creation, terminal
// acknowledge, listings, and the detached bridge/push side effects.
type AlertService struct {
	types      AlertTypeStore
	alerts     AlertStore
	hubs       HubStore
	nodes      NodeStore
	dispatcher Dispatcher
	bridge     Bridge
	pusher     Pusher
	notifier   LiveNotifier
	logger     *zap.Logger
}

func NewAlertService(
	types AlertTypeStore,
	alerts AlertStore,
	hubs HubStore,
	nodes NodeStore,
	dispatcher Dispatcher,
	bridge Bridge,
	pusher Pusher,
	notifier LiveNotifier,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		types:      types,
		alerts:     alerts,
		hubs:       hubs,
		nodes:      nodes,
		dispatcher: dispatcher,
		bridge:     bridge,
		pusher:     pusher,
		notifier:   notifier,
		logger:     logger,
	}
}

// Create raises an alert unless one of the same type is already active for
// the same scope, in which case the existing alert is returned unchanged.
// The dedup check and the insert are not atomic; concurrent duplicate
// triggers can still race in a second row.
func (s *AlertService) Create(ctx context.Context, input CreateAlertInput) (*models.Alert, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	code := strings.ToLower(strings.TrimSpace(input.TypeCode))
	if code == "" {
		return nil, fmt.Errorf("%w: alert type code is required", ErrValidation)
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}

	alertType, err := s.types.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load alert type: %w", err)
	}
	if alertType == nil {
		return nil, fmt.Errorf("%w: alert type %q", ErrNotFound, code)
	}

	hubID := s.resolveHubScope(ctx, tenantID, input.HubExternalID)
	nodeID := s.resolveNodeScope(ctx, tenantID, input.NodeExternalID)

	existing, err := s.alerts.GetActiveByScope(ctx, tenantID, alertType.ID, hubID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("check active alerts: %w", err)
	}
	if existing != nil {
		s.logger.Debug("duplicate active alert suppressed",
			zap.String("type_code", code),
			zap.String("alert_id", existing.ID.String()))
		return existing, nil
	}

	severity := alertType.DefaultLevel
	if input.Severity != nil {
		severity = *input.Severity
	}
	source := input.Source
	if source == "" {
		source = models.AlertSourceLocal
	}

	alert := &models.Alert{
		ID:             uuid.New(),
		TenantID:       tenantID,
		AlertTypeID:    alertType.ID,
		TypeCode:       alertType.Code,
		HubID:          hubID,
		NodeID:         nodeID,
		Severity:       severity,
		Source:         source,
		Message:        input.Message,
		Recommendation: input.Recommendation,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.alerts.Insert(ctx, alert); err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}

	s.logger.Info("alert created",
		zap.String("type_code", alert.TypeCode),
		zap.String("severity", alert.Severity.String()),
		zap.String("source", alert.Source))

	s.notifier.AlertRaised(alert)
	s.dispatchSideEffects(alert, alertType.Name, true)
	return alert, nil
}

// CreateExternal raises an alert reported by the remote backend.
func (s *AlertService) CreateExternal(ctx context.Context, input CreateAlertInput) (*models.Alert, error) {
	input.Source = models.AlertSourceExternal
	return s.Create(ctx, input)
}

// Acknowledge closes an alert. An unknown id returns (nil, nil).
func (s *AlertService) Acknowledge(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	acked, err := s.alerts.Acknowledge(ctx, tenantID, id, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert: %w", err)
	}
	if !acked {
		s.logger.Warn("alert not found for acknowledge", zap.String("alert_id", id.String()))
		return nil, nil
	}
	alert, err := s.alerts.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("load alert: %w", err)
	}
	if alert == nil {
		return nil, nil
	}

	s.logger.Info("alert acknowledged",
		zap.String("alert_id", id.String()),
		zap.String("type_code", alert.TypeCode))

	s.notifier.AlertAcknowledged(alert)
	s.dispatchSideEffects(alert, alert.TypeCode, false)
	return alert, nil
}

// GetByID returns an alert or (nil, nil).
func (s *AlertService) GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	return s.alerts.GetByID(ctx, tenantID, id)
}

// ListActive returns active alerts, critical first, newest first within a
// severity.
func (s *AlertService) ListActive(ctx context.Context) ([]models.Alert, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	return s.alerts.ListActive(ctx, tenantID)
}

// ListFiltered returns one page of alerts matching the combinable filters.
func (s *AlertService) ListFiltered(ctx context.Context, filter repository.AlertFilter, page, pageSize int) (*AlertPage, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	total, err := s.alerts.CountFiltered(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}
	items, err := s.alerts.ListFiltered(ctx, tenantID, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	return &AlertPage{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// CreateNodeOffline raises a node_offline alert for the node. The dedup in
// Create guarantees at most one active alert per node.
func (s *AlertService) CreateNodeOffline(ctx context.Context, nodeID uuid.UUID) error {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	node, err := s.nodes.GetByID(ctx, tenantID, nodeID)
	if err != nil {
		return fmt.Errorf("load node: %w", err)
	}
	if node == nil {
		return nil
	}
	severity := models.SeverityCritical
	recommendation := "Please check the power supply and network connection of the device."
	_, err = s.Create(ctx, CreateAlertInput{
		TypeCode:       AlertCodeNodeOffline,
		Message:        fmt.Sprintf("Node device '%s' is offline.", node.Name),
		Recommendation: &recommendation,
		NodeExternalID: node.ExternalID,
		Severity:       &severity,
	})
	return err
}

// CreateHubOffline raises a hub_offline alert for the hub.
func (s *AlertService) CreateHubOffline(ctx context.Context, hubID uuid.UUID) error {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	hub, err := s.hubs.GetByID(ctx, tenantID, hubID)
	if err != nil {
		return fmt.Errorf("load hub: %w", err)
	}
	if hub == nil {
		return nil
	}
	severity := models.SeverityCritical
	recommendation := "Please check the power supply and network connection of the hub."
	_, err = s.Create(ctx, CreateAlertInput{
		TypeCode:       AlertCodeHubOffline,
		Message:        fmt.Sprintf("Hub '%s' is offline.", hub.Name),
		Recommendation: &recommendation,
		HubExternalID:  hub.ExternalID,
		Severity:       &severity,
	})
	return err
}

// DeactivateNodeAlerts closes active alerts of one type for a node,
// without acknowledging them. Used when a node comes back online.
func (s *AlertService) DeactivateNodeAlerts(ctx context.Context, nodeID uuid.UUID, typeCode string) error {
	return s.deactivateScope(ctx, typeCode, nil, &nodeID)
}

// DeactivateHubAlerts closes active alerts of one type for a hub.
func (s *AlertService) DeactivateHubAlerts(ctx context.Context, hubID uuid.UUID, typeCode string) error {
	return s.deactivateScope(ctx, typeCode, &hubID, nil)
}

func (s *AlertService) deactivateScope(ctx context.Context, typeCode string, hubID, nodeID *uuid.UUID) error {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	code := strings.ToLower(strings.TrimSpace(typeCode))
	alertType, err := s.types.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("load alert type: %w", err)
	}
	if alertType == nil {
		return fmt.Errorf("%w: alert type %q", ErrNotFound, code)
	}
	return s.alerts.DeactivateScope(ctx, tenantID, alertType.ID, hubID, nodeID)
}

// resolveHubScope is soft: a hub that cannot be found yields no association.
func (s *AlertService) resolveHubScope(ctx context.Context, tenantID uuid.UUID, externalID string) *uuid.UUID {
	if strings.TrimSpace(externalID) == "" {
		return nil
	}
	hub, err := s.hubs.GetByExternalID(ctx, tenantID, externalID)
	if err != nil || hub == nil {
		s.logger.Debug("alert hub scope not resolved", zap.String("hub_external_id", externalID), zap.Error(err))
		return nil
	}
	return &hub.ID
}

func (s *AlertService) resolveNodeScope(ctx context.Context, tenantID uuid.UUID, externalID string) *uuid.UUID {
	if strings.TrimSpace(externalID) == "" {
		return nil
	}
	node, err := s.nodes.GetByExternalID(ctx, tenantID, externalID)
	if err != nil || node == nil {
		s.logger.Debug("alert node scope not resolved", zap.String("node_external_id", externalID), zap.Error(err))
		return nil
	}
	return &node.ID
}

// dispatchSideEffects queues the push notification and bridge contact sync.
// Both run detached; a failure never reaches the triggering caller.
func (s *AlertService) dispatchSideEffects(alert *models.Alert, displayName string, open bool) {
	deviceID := bridgeContactID(alert)
	title := displayName
	body := alert.Message
	severity := alert.Severity.String()

	s.dispatcher.Dispatch("alert-push", func(ctx context.Context) error {
		if !open {
			return s.pusher.Send(ctx, title, fmt.Sprintf("Resolved: %s", body), severity)
		}
		return s.pusher.Send(ctx, title, body, severity)
	})
	s.dispatcher.Dispatch("alert-bridge-sync", func(ctx context.Context) error {
		if open {
			if err := s.bridge.RegisterContact(ctx, deviceID, displayName); err != nil {
				return err
			}
		}
		return s.bridge.SetContactState(ctx, deviceID, open)
	})
}

// bridgeContactID keys the bridge contact sensor by alert type and scope.
func bridgeContactID(alert *models.Alert) string {
	switch {
	case alert.NodeID != nil:
		return fmt.Sprintf("alert_%s_%s", alert.TypeCode, alert.NodeID)
	case alert.HubID != nil:
		return fmt.Sprintf("alert_%s_%s", alert.TypeCode, alert.HubID)
	default:
		return fmt.Sprintf("alert_%s", alert.TypeCode)
	}
}
