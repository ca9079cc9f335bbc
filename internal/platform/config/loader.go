package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath  = "NODEUSER_CONFIG"
	envServerPort  = "NODEUSER_PORT"
	envStoreDriver = "NODEUSER_STORE_DRIVER"
	envSQLiteDSN   = "NODEUSER_SQLITE_DSN"
	envRedisAddr   = "NODEUSER_REDIS_ADDR"
	envRedisPass   = "NODEUSER_REDIS_PASSWORD"
	envSMTPPass    = "NODEUSER_SMTP_PASSWORD"
	envLogLevel    = "NODEUSER_LOG_LEVEL"
)

// Loader reads configuration from defaults, an optional yaml file and
// environment variables, in that order of precedence.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader with .env support enabled.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the config file location (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the effective configuration. A missing config file is not an
// error; defaults plus environment overrides apply.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// Best effort; absence of a .env file is the common case.
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path := l.path
	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		path = ""
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(envStoreDriver); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv(envSQLiteDSN); v != "" {
		cfg.Store.SQLite.DSN = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv(envRedisPass); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv(envSMTPPass); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost: %d", cfg.Auth.BcryptCost)
	}
	return nil
}
