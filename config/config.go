package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Database   DatabaseConfig   `yaml:"database" envPrefix:"DATABASE_"`
	Storage    StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	Session    SessionConfig    `yaml:"session" envPrefix:"SESSION_"`
	Catalog    CatalogConfig    `yaml:"catalog" envPrefix:"CATALOG_"`
	Admin      AdminConfig      `yaml:"admin" envPrefix:"ADMIN_"`
	Push       PushConfig       `yaml:"push" envPrefix:"PUSH_"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool" envPrefix:"WORKER_POOL_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                  int           `yaml:"port" env:"PORT"`
	AllowedOrigins        []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	RateLimitPerSec       float64       `yaml:"rate_limit_per_sec" env:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst        int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	LoginRatePerMin       float64       `yaml:"login_rate_per_min" env:"LOGIN_RATE_PER_MIN"`
	CacheTTLSeconds       int           `yaml:"cache_ttl_seconds" env:"CACHE_TTL_SECONDS"`
	RequestTimeoutSeconds int           `yaml:"request_timeout_seconds" env:"REQUEST_TIMEOUT_SECONDS"`
	CacheTTL              time.Duration `yaml:"-"`
	RequestTimeout        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" env:"DRIVER"` // postgres or sqlite
	DSN                    string `yaml:"dsn" env:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" env:"CONN_MAX_LIFETIME_MINUTES"`
	LogQueries             bool   `yaml:"log_queries" env:"LOG_QUERIES"`
}

// StorageConfig describes where uploaded images live and how they are addressed.
type StorageConfig struct {
	Root          string `yaml:"root" env:"ROOT"`
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	PiecesBucket  string `yaml:"pieces_bucket" env:"PIECES_BUCKET"`
	HeroBucket    string `yaml:"hero_bucket" env:"HERO_BUCKET"`
}

// SessionConfig controls the admin session cookie.
type SessionConfig struct {
	Store         string `yaml:"store" env:"STORE"` // memory or sqlite
	SQLitePath    string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	CookieName    string `yaml:"cookie_name" env:"COOKIE_NAME"`
	LifetimeHours int    `yaml:"lifetime_hours" env:"LIFETIME_HOURS"`
	Secure        bool   `yaml:"secure" env:"SECURE"`
}

// CatalogConfig holds limits for catalog editing.
type CatalogConfig struct {
	MaxImages          int   `yaml:"max_images" env:"MAX_IMAGES"`
	MaxUploadBytes     int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	MaxHeroUploadBytes int64 `yaml:"max_hero_upload_bytes" env:"MAX_HERO_UPLOAD_BYTES"`
}

// AdminConfig seeds the store settings row on first start.
type AdminConfig struct {
	StoreName       string `yaml:"store_name" env:"STORE_NAME"`
	InitialPassword string `yaml:"initial_password" env:"INITIAL_PASSWORD"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject" env:"SUBJECT"`
	TTL        int    `yaml:"ttl" env:"TTL"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size" env:"SIZE"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// EnvPrefix is prepended to every environment override, e.g. LOOKS_DATABASE_DSN.
const EnvPrefix = "LOOKS_"

// Load reads the configuration from the given path and applies environment overrides.
// A missing file is not an error: defaults plus environment are enough to boot.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.LoginRatePerMin <= 0 {
		cfg.Server.LoginRatePerMin = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cfg.Server.RequestTimeoutSeconds <= 0 {
		cfg.Server.RequestTimeoutSeconds = 30
	}
	cfg.Server.RequestTimeout = time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "looksdehoje.db"
	}

	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "./uploads"
	}
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = "/uploads"
	}
	if cfg.Storage.PiecesBucket == "" {
		cfg.Storage.PiecesBucket = "pieces"
	}
	if cfg.Storage.HeroBucket == "" {
		cfg.Storage.HeroBucket = "hero-images"
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "looksdehoje_session"
	}
	if cfg.Session.LifetimeHours <= 0 {
		// The admin flag has no expiry of its own; a year keeps the cookie effectively durable.
		cfg.Session.LifetimeHours = 24 * 365
	}

	if cfg.Catalog.MaxImages <= 0 {
		cfg.Catalog.MaxImages = 10
	}
	if cfg.Catalog.MaxUploadBytes <= 0 {
		cfg.Catalog.MaxUploadBytes = 10 << 20
	}
	if cfg.Catalog.MaxHeroUploadBytes <= 0 {
		cfg.Catalog.MaxHeroUploadBytes = 5 << 20
	}

	if cfg.Admin.StoreName == "" {
		cfg.Admin.StoreName = "LooksdeHoje"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
