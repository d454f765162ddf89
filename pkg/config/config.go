package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the astro bot.
type Config struct {
	AppEnv        string              `mapstructure:"app_env"`
	Server        ServerConfig        `mapstructure:"server"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Sentry        SentryConfig        `mapstructure:"sentry"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Session       SessionConfig       `mapstructure:"session"`
	Menu          MenuConfig          `mapstructure:"menu"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	WhatsApp      WhatsAppConfig      `mapstructure:"whatsapp"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Idempotency   IdempotencyConfig   `mapstructure:"idempotency"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	I18n          I18nConfig          `mapstructure:"i18n"`
}

// ServerConfig configures the inbound webhook HTTP server.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggerConfig selects log level, output format and optional file rotation.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig toggles error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty host selects the in-memory repository.
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name"`
	SSLMode       string `mapstructure:"sslmode"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// RedisConfig holds Redis connection parameters. An empty address selects in-memory stores.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	ProfileTTL   time.Duration `mapstructure:"profile_ttl"`
}

// SessionConfig controls conversational session lifetime.
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl" validate:"required"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	LockWait        time.Duration `mapstructure:"lock_wait"`
	MaxStackDepth   int           `mapstructure:"max_stack_depth" validate:"gte=0"`
	DistributedLock bool          `mapstructure:"distributed_lock"`
}

// MenuConfig controls menu rendering limits.
type MenuConfig struct {
	DisplayThreshold int `mapstructure:"display_threshold" validate:"gte=0,lte=10"`
	MaxFavorites     int `mapstructure:"max_favorites" validate:"gte=0"`
	MaxRecent        int `mapstructure:"max_recent" validate:"gte=0"`
}

// CollaboratorsConfig configures the external content, geocoding and payment services.
type CollaboratorsConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout" validate:"required"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Payment  PaymentConfig  `mapstructure:"payment"`
}

// GeocoderConfig selects the geocoding backend.
type GeocoderConfig struct {
	Provider  string `mapstructure:"provider" validate:"omitempty,oneof=gazetteer http"`
	BaseURL   string `mapstructure:"base_url" validate:"required_if=Provider http"`
	UserAgent string `mapstructure:"user_agent"`
}

// PaymentConfig configures plan prices for the sandbox gateway.
type PaymentConfig struct {
	Currency       string `mapstructure:"currency"`
	EssentialPrice int64  `mapstructure:"essential_price"`
	PremiumPrice   int64  `mapstructure:"premium_price"`
	PeriodDays     int    `mapstructure:"period_days"`
}

// WhatsAppConfig configures the Cloud API channel.
type WhatsAppConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	APIURL        string        `mapstructure:"api_url" validate:"required_if=Enabled true"`
	PhoneNumberID string        `mapstructure:"phone_number_id" validate:"required_if=Enabled true"`
	AccessToken   string        `mapstructure:"access_token" validate:"required_if=Enabled true"`
	VerifyToken   string        `mapstructure:"verify_token"`
	AppSecret     string        `mapstructure:"app_secret"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

// TelegramConfig configures the optional Telegram channel.
type TelegramConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Token   string        `mapstructure:"token" validate:"required_if=Enabled true"`
	Mode    string        `mapstructure:"mode" validate:"omitempty,oneof=polling webhook"`
	Listen  string        `mapstructure:"listen"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitRule describes a limit within a time window (e.g. 20 per "1m").
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig holds per-phone flood protection settings.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Whitelist []string      `mapstructure:"whitelist"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
}

// IdempotencyConfig controls webhook delivery deduplication.
type IdempotencyConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// JobsConfig configures the asynq background worker.
type JobsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Concurrency int    `mapstructure:"concurrency"`
	SweepCron   string `mapstructure:"sweep_cron"`
}

// I18nConfig holds localisation defaults.
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// GetDBConnectionString returns PostgreSQL DSN based on config values.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// applyDefaults fills zero values that have a sensible default.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 30 * time.Minute
	}
	if c.Session.LockTTL == 0 {
		c.Session.LockTTL = 10 * time.Second
	}
	if c.Session.LockWait == 0 {
		c.Session.LockWait = 5 * time.Second
	}
	if c.Session.MaxStackDepth == 0 {
		c.Session.MaxStackDepth = 12
	}
	if c.Menu.DisplayThreshold == 0 {
		c.Menu.DisplayThreshold = 10
	}
	if c.Menu.MaxFavorites == 0 {
		c.Menu.MaxFavorites = 5
	}
	if c.Menu.MaxRecent == 0 {
		c.Menu.MaxRecent = 10
	}
	if c.Collaborators.Timeout == 0 {
		c.Collaborators.Timeout = 8 * time.Second
	}
	if c.Collaborators.Geocoder.Provider == "" {
		c.Collaborators.Geocoder.Provider = "gazetteer"
	}
	if c.Collaborators.Payment.PeriodDays == 0 {
		c.Collaborators.Payment.PeriodDays = 30
	}
	if c.WhatsApp.SendTimeout == 0 {
		c.WhatsApp.SendTimeout = 10 * time.Second
	}
	if c.Idempotency.TTL == 0 {
		c.Idempotency.TTL = 24 * time.Hour
	}
	if c.Jobs.Concurrency == 0 {
		c.Jobs.Concurrency = 10
	}
	if c.I18n.DefaultLanguage == "" {
		c.I18n.DefaultLanguage = "en"
	}
}
