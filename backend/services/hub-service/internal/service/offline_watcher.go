package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/tenancy"
)

// lastSeenReader is the read surface of the liveness cache.
type lastSeenReader interface {
	LastSeen(ctx context.Context, nodeID uuid.UUID) (*time.Time, error)
}

// OfflineWatcher periodically checks node and hub liveness and keeps the
// offline alerts in sync: stale entities get an offline alert, entities that
// report again get their offline alerts closed. The alert dedup makes the
// repeated checks idempotent.
type OfflineWatcher struct {
	tenantID      uuid.UUID
	nodes         NodeStore
	hubs          HubStore
	alerts        *AlertService
	liveness      lastSeenReader
	checkInterval time.Duration
	offlineAfter  time.Duration
	logger        *zap.Logger
}

func NewOfflineWatcher(
	tenantID uuid.UUID,
	nodes NodeStore,
	hubs HubStore,
	alerts *AlertService,
	liveness lastSeenReader,
	checkInterval, offlineAfter time.Duration,
	logger *zap.Logger,
) *OfflineWatcher {
	return &OfflineWatcher{
		tenantID:      tenantID,
		nodes:         nodes,
		hubs:          hubs,
		alerts:        alerts,
		liveness:      liveness,
		checkInterval: checkInterval,
		offlineAfter:  offlineAfter,
		logger:        logger,
	}
}

// Run blocks until ctx is cancelled.
func (w *OfflineWatcher) Run(ctx context.Context) {
	w.logger.Info("offline watcher started",
		zap.Duration("check_interval", w.checkInterval),
		zap.Duration("offline_after", w.offlineAfter))

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("offline watcher stopped")
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *OfflineWatcher) check(ctx context.Context) {
	ctx = tenancy.WithTenant(ctx, w.tenantID)
	threshold := time.Now().UTC().Add(-w.offlineAfter)

	nodes, err := w.nodes.ListByTenant(ctx, w.tenantID)
	if err != nil {
		w.logger.Error("offline check failed to list nodes", zap.Error(err))
		return
	}
	for _, node := range nodes {
		lastSeen := node.LastSeen
		if cached, err := w.liveness.LastSeen(ctx, node.ID); err == nil && cached != nil {
			lastSeen = cached
		}
		if lastSeen == nil || lastSeen.Before(threshold) {
			if err := w.alerts.CreateNodeOffline(ctx, node.ID); err != nil {
				w.logger.Error("failed to raise node offline alert",
					zap.String("node_id", node.ID.String()), zap.Error(err))
			}
			continue
		}
		if err := w.alerts.DeactivateNodeAlerts(ctx, node.ID, AlertCodeNodeOffline); err != nil {
			w.logger.Error("failed to close node offline alerts",
				zap.String("node_id", node.ID.String()), zap.Error(err))
		}
	}

	hub, err := w.hubs.GetDefault(ctx, w.tenantID)
	if err != nil {
		w.logger.Error("offline check failed to load hub", zap.Error(err))
		return
	}
	if hub == nil {
		return
	}
	if hub.LastSeen == nil || hub.LastSeen.Before(threshold) {
		if err := w.alerts.CreateHubOffline(ctx, hub.ID); err != nil {
			w.logger.Error("failed to raise hub offline alert",
				zap.String("hub_id", hub.ID.String()), zap.Error(err))
		}
		return
	}
	if err := w.alerts.DeactivateHubAlerts(ctx, hub.ID, AlertCodeHubOffline); err != nil {
		w.logger.Error("failed to close hub offline alerts",
			zap.String("hub_id", hub.ID.String()), zap.Error(err))
	}
}
