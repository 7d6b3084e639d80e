package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Authentication modes.
const (
	AuthDev       = "dev"
	AuthTailscale = "tailscale"
	AuthJWT       = "jwt"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Workout   WorkoutConfig   `yaml:"workout"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// WebDir, when set, is served as the single-page frontend.
	WebDir string `yaml:"web_dir"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type AuthConfig struct {
	Mode      string `yaml:"mode"`
	JWTSecret string `yaml:"jwt_secret"`
	// DevUser is the login every request acts as in dev mode.
	DevUser string `yaml:"dev_user"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type WorkoutConfig struct {
	DefaultRestSeconds int `yaml:"default_rest_seconds"`
}

type CacheConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File, when set, receives a rotated copy of the log.
	File string `yaml:"file"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

func defaults() *Config {
	return &Config{
		Storage:   StorageConfig{Driver: DriverPostgres},
		Auth:      AuthConfig{Mode: AuthTailscale, DevUser: "dev"},
		Tailscale: TailscaleConfig{Hostname: "ironlog", StateDir: "tsnet-state"},
		Workout:   WorkoutConfig{DefaultRestSeconds: 90},
		Cache:     CacheConfig{Dir: "cache"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix IRONLOG_ and underscore-separated paths:
//
//	IRONLOG_SERVER_HOST, IRONLOG_SERVER_PORT, IRONLOG_SERVER_WEB_DIR,
//	IRONLOG_DB_HOST, IRONLOG_DB_PORT, IRONLOG_DB_NAME,
//	IRONLOG_DB_USER, IRONLOG_DB_PASSWORD, IRONLOG_DB_SSLMODE,
//	IRONLOG_STORAGE_DRIVER, IRONLOG_AUTH_MODE, IRONLOG_AUTH_JWT_SECRET,
//	IRONLOG_TAILSCALE_ENABLED, IRONLOG_TAILSCALE_HOSTNAME,
//	IRONLOG_WORKOUT_DEFAULT_REST_SECONDS, IRONLOG_CACHE_DIR,
//	IRONLOG_LOG_LEVEL, IRONLOG_LOG_FORMAT, IRONLOG_LOG_FILE
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	envString("IRONLOG_SERVER_HOST", &cfg.Server.Host)
	envInt("IRONLOG_SERVER_PORT", &cfg.Server.Port)
	envString("IRONLOG_SERVER_WEB_DIR", &cfg.Server.WebDir)
	envString("IRONLOG_DB_HOST", &cfg.Database.Host)
	envInt("IRONLOG_DB_PORT", &cfg.Database.Port)
	envString("IRONLOG_DB_NAME", &cfg.Database.Name)
	envString("IRONLOG_DB_USER", &cfg.Database.User)
	envString("IRONLOG_DB_PASSWORD", &cfg.Database.Password)
	envString("IRONLOG_DB_SSLMODE", &cfg.Database.SSLMode)
	envString("IRONLOG_STORAGE_DRIVER", &cfg.Storage.Driver)
	envString("IRONLOG_AUTH_MODE", &cfg.Auth.Mode)
	envString("IRONLOG_AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	envString("IRONLOG_AUTH_DEV_USER", &cfg.Auth.DevUser)
	envBool("IRONLOG_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	envString("IRONLOG_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	envString("IRONLOG_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)
	envInt("IRONLOG_WORKOUT_DEFAULT_REST_SECONDS", &cfg.Workout.DefaultRestSeconds)
	envString("IRONLOG_CACHE_DIR", &cfg.Cache.Dir)
	envString("IRONLOG_LOG_LEVEL", &cfg.Log.Level)
	envString("IRONLOG_LOG_FORMAT", &cfg.Log.Format)
	envString("IRONLOG_LOG_FILE", &cfg.Log.File)
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be %s or %s, got %q", DriverPostgres, DriverMemory, c.Storage.Driver)
	}

	switch c.Auth.Mode {
	case AuthDev:
		if c.Auth.DevUser == "" {
			return fmt.Errorf("auth.dev_user is required in dev mode")
		}
	case AuthTailscale:
		if !c.Tailscale.Enabled {
			return fmt.Errorf("auth.mode tailscale requires tailscale.enabled")
		}
	case AuthJWT:
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
		}
	default:
		return fmt.Errorf("auth.mode must be one of dev, tailscale, jwt, got %q", c.Auth.Mode)
	}

	if c.Workout.DefaultRestSeconds < 0 {
		return fmt.Errorf("workout.default_rest_seconds must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
