package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Business  BusinessConfig  `mapstructure:"business"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Health    HealthConfig    `mapstructure:"health"`
	Env       string          `mapstructure:"env"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	Migrate         bool          `mapstructure:"migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SchedulerConfig struct {
	IntegrityCron string `mapstructure:"integrity_cron"`
	Timezone      string `mapstructure:"timezone"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BusinessConfig struct {
	Timezone    string `mapstructure:"timezone"`
	PayoutTiers string `mapstructure:"payout_tiers"`
}

type ReconcileConfig struct {
	ManagerRoles string        `mapstructure:"manager_roles"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// envAliases maps the flat environment names operators use to viper keys.
var envAliases = map[string]string{
	"ENV":                        "env",
	"SERVER_HOST":                "server.host",
	"SERVER_PORT":                "server.port",
	"SERVER_READ_TIMEOUT":        "server.read_timeout",
	"SERVER_WRITE_TIMEOUT":       "server.write_timeout",
	"DATABASE_DRIVER":            "database.driver",
	"DATABASE_URL":               "database.url",
	"DATABASE_MAX_OPEN_CONNS":    "database.max_open_conns",
	"DATABASE_MAX_IDLE_CONNS":    "database.max_idle_conns",
	"DATABASE_CONN_MAX_LIFETIME": "database.conn_max_lifetime",
	"DATABASE_QUERY_TIMEOUT":     "database.query_timeout",
	"DATABASE_MIGRATE":           "database.migrate",
	"REDIS_HOST":                 "redis.host",
	"REDIS_PORT":                 "redis.port",
	"REDIS_PASSWORD":             "redis.password",
	"REDIS_DB":                   "redis.db",
	"SCHEDULER_INTEGRITY_CRON":   "scheduler.integrity_cron",
	"SCHEDULER_TIMEZONE":         "scheduler.timezone",
	"LOG_LEVEL":                  "logging.level",
	"LOG_FORMAT":                 "logging.format",
	"BUSINESS_TIMEZONE":          "business.timezone",
	"PAYOUT_TIERS":               "business.payout_tiers",
	"PAYMENT_MANAGER_ROLES":      "reconcile.manager_roles",
	"RECONCILE_LOCK_TTL":         "reconcile.lock_ttl",
	"WORKFLOW_SESSION_TTL":       "reconcile.session_ttl",
	"HEALTH_CHECK_TIMEOUT":       "health.timeout",
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("env", "development")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.query_timeout", "10s")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("scheduler.integrity_cron", "0 0 2 * * *")
	v.SetDefault("scheduler.timezone", "Asia/Bangkok")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("business.timezone", "Asia/Bangkok")
	v.SetDefault("business.payout_tiers", "basic=300,standard=500,premium=1000")
	v.SetDefault("reconcile.manager_roles", "admin")
	v.SetDefault("reconcile.lock_ttl", "30s")
	v.SetDefault("reconcile.session_ttl", "2h")
	v.SetDefault("health.timeout", "5s")

	// Try to read from .env file (optional); real environment wins
	_ = godotenv.Load()

	// Read from environment variables
	for env, key := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.IsProduction() && c.Database.Driver == "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER sqlite is for local development; use postgres in production")
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("DATABASE_QUERY_TIMEOUT must be greater than 0")
	}

	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if _, err := ParsePayoutTiers(c.Business.PayoutTiers); err != nil {
		return fmt.Errorf("PAYOUT_TIERS is invalid: %w", err)
	}

	if len(c.ManagerRoles()) == 0 {
		return fmt.Errorf("PAYMENT_MANAGER_ROLES must name at least one role")
	}

	if c.Reconcile.LockTTL <= 0 {
		return fmt.Errorf("RECONCILE_LOCK_TTL must be greater than 0")
	}

	if c.Reconcile.SessionTTL <= 0 {
		return fmt.Errorf("WORKFLOW_SESSION_TTL must be greater than 0")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Location returns the business time zone used for period keys and day bounds.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetPayoutTiers returns the configured payout tiers.
func (c *Config) GetPayoutTiers() map[string]decimal.Decimal {
	tiers, _ := ParsePayoutTiers(c.Business.PayoutTiers)
	return tiers
}

// ManagerRoles returns the roles allowed to manage fisher payments.
func (c *Config) ManagerRoles() []string {
	var roles []string
	for _, role := range strings.Split(c.Reconcile.ManagerRoles, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, strings.ToLower(role))
		}
	}
	return roles
}

// reservedTierName selects a custom amount and cannot name a configured tier.
const reservedTierName = "custom"

// ParsePayoutTiers parses "name=amount,name=amount" into a tier table.
func ParsePayoutTiers(raw string) (map[string]decimal.Decimal, error) {
	tiers := make(map[string]decimal.Decimal)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, amount, ok := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("tier %q must be name=amount", part)
		}
		if name == reservedTierName {
			return nil, fmt.Errorf("tier name %q is reserved for operator-entered amounts", name)
		}
		value, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("tier %q amount: %w", name, err)
		}
		if !value.IsPositive() {
			return nil, fmt.Errorf("tier %q amount must be greater than 0", name)
		}
		if !value.Equal(value.Round(2)) {
			return nil, fmt.Errorf("tier %q amount has more than 2 decimal places", name)
		}
		tiers[name] = value
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	return tiers, nil
}
