package app

import (
	"context"
	"database/sql"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sensegrid/backend/libs/db"
	libredis "sensegrid/backend/libs/redis"
	"sensegrid/backend/services/hub-service/internal/clients"
	"sensegrid/backend/services/hub-service/internal/config"
	"sensegrid/backend/services/hub-service/internal/liveness"
	"sensegrid/backend/services/hub-service/internal/notify"
	"sensegrid/backend/services/hub-service/internal/repository"
	"sensegrid/backend/services/hub-service/internal/service"
	"sensegrid/backend/services/hub-service/internal/ws"
)

// App wires hub service dependencies.
type App struct {
	cfg        *config.Config
	db         *sql.DB
	redis      *goredis.Client
	dispatcher *notify.Dispatcher
	wsHub      *ws.Hub
	watcher    *service.OfflineWatcher
	logger     *zap.Logger

	Readings   *service.ReadingService
	Charts     *service.ChartService
	Dashboards *service.DashboardService
	Alerts     *service.AlertService
	Bindings   *service.BindingService
	WSHub      *ws.Hub
}

// New constructs application components.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgresDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	hubRepo := repository.NewHubRepository(sqlDB)
	nodeRepo := repository.NewNodeRepository(sqlDB)
	bindingRepo := repository.NewBindingRepository(sqlDB)
	readingRepo := repository.NewReadingRepository(sqlDB)
	alertRepo := repository.NewAlertRepository(sqlDB)
	alertTypeRepo := repository.NewAlertTypeRepository(sqlDB)

	livenessStore := liveness.NewStore(redisClient, cfg.LivenessTTL())
	wsHub := ws.NewHub(cfg.WSPingInterval(), logger)
	dispatcher := notify.NewDispatcher(cfg.Dispatcher.QueueSize, cfg.DispatcherTaskTimeout(), logger)

	bridge := clients.NewBridgeClient(cfg.Bridge.BaseURL, logger)
	pusher := clients.NewPushClient(cfg.Push.BaseURL, logger)

	readingService := service.NewReadingService(hubRepo, nodeRepo, bindingRepo, readingRepo, livenessStore, wsHub, logger)
	chartService := service.NewChartService(nodeRepo, bindingRepo, readingRepo, logger)
	dashboardService := service.NewDashboardService(nodeRepo, bindingRepo, readingRepo, logger)
	alertService := service.NewAlertService(alertTypeRepo, alertRepo, hubRepo, nodeRepo, dispatcher, bridge, pusher, wsHub, logger)
	bindingService := service.NewBindingService(bindingRepo, bindingRepo, logger)

	var watcher *service.OfflineWatcher
	if cfg.Monitoring.Enabled {
		watcher = service.NewOfflineWatcher(
			cfg.TenantID(),
			nodeRepo,
			hubRepo,
			alertService,
			livenessStore,
			cfg.MonitoringCheckInterval(),
			cfg.MonitoringOfflineTimeout(),
			logger,
		)
	}

	return &App{
		cfg:        cfg,
		db:         sqlDB,
		redis:      redisClient,
		dispatcher: dispatcher,
		wsHub:      wsHub,
		watcher:    watcher,
		logger:     logger,
		Readings:   readingService,
		Charts:     chartService,
		Dashboards: dashboardService,
		Alerts:     alertService,
		Bindings:   bindingService,
		WSHub:      wsHub,
	}, nil
}

// Run starts the background loops and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.wsHub.Start(ctx)
	if a.watcher != nil {
		go a.watcher.Run(ctx)
	}
	<-ctx.Done()
	return ctx.Err()
}

// Close releases resources.
func (a *App) Close() {
	a.dispatcher.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close db", zap.Error(err))
	}
}
