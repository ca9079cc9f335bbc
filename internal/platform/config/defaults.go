package config

// DefaultConfig returns the configuration used when no file or override is
// present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 3000,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "./public",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			SQLite: SQLiteStoreConfig{
				DSN: "data/nodeuser.db",
			},
		},
		Auth: AuthConfig{
			BcryptCost: 10,
			ResetURL:   "http://localhost:3000/reset?code=",
		},
		Mail: MailConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    587,
			From:    "no-reply@localhost",
		},
	}
}
