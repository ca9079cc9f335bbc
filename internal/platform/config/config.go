package config

// Config is the full typed configuration of the server. Every field has a
// default (defaults.go); the loader merges the yaml file and environment
// overrides on top of it.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Web    WebConfig    `yaml:"web"`
	Store  StoreConfig  `yaml:"store"`
	Auth   AuthConfig   `yaml:"auth"`
	Mail   MailConfig   `yaml:"mail"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig selects and configures the user store backend.
type StoreConfig struct {
	Driver string            `yaml:"driver"`
	SQLite SQLiteStoreConfig `yaml:"sqlite,omitempty"`
	Redis  RedisStoreConfig  `yaml:"redis,omitempty"`
}

type SQLiteStoreConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// AuthConfig tunes the credential and session handling.
type AuthConfig struct {
	BcryptCost int    `yaml:"bcrypt_cost"`
	ResetURL   string `yaml:"reset_url"`
}

// MailConfig configures the SMTP sender for password reset mail. When
// Enabled is false, reset mail is written to the log instead.
type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from"`
}
