package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Lock       LockConfig       `yaml:"lock"`
	Audit      AuditConfig      `yaml:"audit"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                  int           `yaml:"port"`
	RequestIPHeader       string        `yaml:"request_ip_header"`
	RateLimitPerSec       float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst        int           `yaml:"rate_limit_burst"`
	CacheTTLMillis        int           `yaml:"cache_ttl_millis"`
	CacheTTL              time.Duration `yaml:"-"`
	RequestTimeoutSeconds int           `yaml:"request_timeout_seconds"`
	RequestTimeout        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableRangeIndex       bool   `yaml:"enable_range_index"`
	LogQueries             bool   `yaml:"log_queries"`
}

// SchedulingConfig holds the policy constants of the availability and slot views.
type SchedulingConfig struct {
	LookaheadHours         int           `yaml:"lookahead_hours"`
	Lookahead              time.Duration `yaml:"-"`
	UpcomingLimit          int           `yaml:"upcoming_limit"`
	SlotSearchHorizonHours int           `yaml:"slot_search_horizon_hours"`
	SlotSearchHorizon      time.Duration `yaml:"-"`
	MaxSlotCount           int           `yaml:"max_slot_count"`
}

// LockConfig selects the per-bay lock backend.
type LockConfig struct {
	Backend       string        `yaml:"backend"` // memory or redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	LeaseSeconds  int           `yaml:"lease_seconds"`
	Lease         time.Duration `yaml:"-"`
	RetryMillis   int           `yaml:"retry_millis"`
	Retry         time.Duration `yaml:"-"`
}

// AuditConfig controls the periodic integrity sweep.
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// AlertsConfig holds the configuration for the integrity alert worker pool.
type AlertsConfig struct {
	WorkerPoolSize int `yaml:"worker_pool_size"`
	QueueSize      int `yaml:"queue_size"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Load reads the configuration from the given path. A missing file is not an error:
// defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, err
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Lock.RedisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 20
	}
	if c.Server.CacheTTLMillis <= 0 {
		c.Server.CacheTTLMillis = 500
	}
	c.Server.CacheTTL = time.Duration(c.Server.CacheTTLMillis) * time.Millisecond
	if c.Server.RequestTimeoutSeconds <= 0 {
		c.Server.RequestTimeoutSeconds = 15
	}
	c.Server.RequestTimeout = time.Duration(c.Server.RequestTimeoutSeconds) * time.Second

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}

	if c.Scheduling.LookaheadHours <= 0 {
		c.Scheduling.LookaheadHours = 24
	}
	c.Scheduling.Lookahead = time.Duration(c.Scheduling.LookaheadHours) * time.Hour
	if c.Scheduling.UpcomingLimit <= 0 {
		c.Scheduling.UpcomingLimit = 5
	}
	if c.Scheduling.SlotSearchHorizonHours <= 0 {
		c.Scheduling.SlotSearchHorizonHours = 14 * 24
	}
	c.Scheduling.SlotSearchHorizon = time.Duration(c.Scheduling.SlotSearchHorizonHours) * time.Hour
	if c.Scheduling.MaxSlotCount <= 0 {
		c.Scheduling.MaxSlotCount = 50
	}

	if c.Lock.Backend == "" {
		c.Lock.Backend = "memory"
	}
	if c.Lock.LeaseSeconds <= 0 {
		c.Lock.LeaseSeconds = 30
	}
	// A lease must outlive any request that can hold it.
	if c.Lock.LeaseSeconds <= c.Server.RequestTimeoutSeconds {
		c.Lock.LeaseSeconds = c.Server.RequestTimeoutSeconds + 5
	}
	c.Lock.Lease = time.Duration(c.Lock.LeaseSeconds) * time.Second
	if c.Lock.RetryMillis <= 0 {
		c.Lock.RetryMillis = 25
	}
	c.Lock.Retry = time.Duration(c.Lock.RetryMillis) * time.Millisecond

	if c.Audit.IntervalSeconds <= 0 {
		c.Audit.IntervalSeconds = 300
	}
	c.Audit.Interval = time.Duration(c.Audit.IntervalSeconds) * time.Second

	if c.Alerts.WorkerPoolSize <= 0 {
		c.Alerts.WorkerPoolSize = 1
	}
	if c.Alerts.QueueSize <= 0 {
		c.Alerts.QueueSize = 64
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}
