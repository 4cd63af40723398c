package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	libconfig "sensegrid/backend/libs/config"
)

// Config defines hub service configuration.
type Config struct {
	Database struct {
		DSN string `yaml:"dsn" env:"HUB_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"HUB_REDIS_ADDR"`
		Password string `yaml:"password" env:"HUB_REDIS_PASSWORD"`
	} `yaml:"redis"`
	Tenant struct {
		ID string `yaml:"id" env:"HUB_TENANT_ID"`
	} `yaml:"tenant"`
	Bridge struct {
		BaseURL string `yaml:"base_url" env:"HUB_BRIDGE_URL"`
	} `yaml:"bridge"`
	Push struct {
		BaseURL string `yaml:"base_url" env:"HUB_PUSH_URL"`
	} `yaml:"push"`
	Liveness struct {
		TTLSeconds int `yaml:"ttl_seconds" env:"HUB_LIVENESS_TTL_SECONDS"`
	} `yaml:"liveness"`
	Monitoring struct {
		Enabled               bool `yaml:"enabled" env:"HUB_MONITORING_ENABLED"`
		CheckIntervalSeconds  int  `yaml:"check_interval_seconds" env:"HUB_MONITORING_CHECK_INTERVAL_SECONDS"`
		OfflineTimeoutMinutes int  `yaml:"offline_timeout_minutes" env:"HUB_MONITORING_OFFLINE_TIMEOUT_MINUTES"`
	} `yaml:"monitoring"`
	WS struct {
		PingIntervalSeconds int `yaml:"ping_interval_seconds" env:"HUB_WS_PING_INTERVAL_SECONDS"`
	} `yaml:"ws"`
	Dispatcher struct {
		QueueSize          int `yaml:"queue_size" env:"HUB_DISPATCHER_QUEUE_SIZE"`
		TaskTimeoutSeconds int `yaml:"task_timeout_seconds" env:"HUB_DISPATCHER_TASK_TIMEOUT_SECONDS"`
	} `yaml:"dispatcher"`
}

// Load configuration using the shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.Redis.Addr = "localhost:6379"
	cfg.Liveness.TTLSeconds = 600
	cfg.Monitoring.Enabled = true
	cfg.Monitoring.CheckIntervalSeconds = 60
	cfg.Monitoring.OfflineTimeoutMinutes = 10
	cfg.WS.PingIntervalSeconds = 30
	cfg.Dispatcher.QueueSize = 128
	cfg.Dispatcher.TaskTimeoutSeconds = 10

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if _, err := uuid.Parse(cfg.Tenant.ID); err != nil {
		return nil, fmt.Errorf("config: tenant id invalid: %w", err)
	}
	return cfg, nil
}

// TenantID returns the parsed tenant identifier. Load validated it.
func (c *Config) TenantID() uuid.UUID {
	return uuid.MustParse(c.Tenant.ID)
}

func (c *Config) LivenessTTL() time.Duration {
	return time.Duration(c.Liveness.TTLSeconds) * time.Second
}

func (c *Config) MonitoringCheckInterval() time.Duration {
	return time.Duration(c.Monitoring.CheckIntervalSeconds) * time.Second
}

func (c *Config) MonitoringOfflineTimeout() time.Duration {
	return time.Duration(c.Monitoring.OfflineTimeoutMinutes) * time.Minute
}

func (c *Config) WSPingInterval() time.Duration {
	return time.Duration(c.WS.PingIntervalSeconds) * time.Second
}

func (c *Config) DispatcherTaskTimeout() time.Duration {
	return time.Duration(c.Dispatcher.TaskTimeoutSeconds) * time.Second
}
