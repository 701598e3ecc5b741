package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Alarms  AlarmsConfig  `toml:"alarms"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	ReadTimeoutSecs    int      `toml:"read_timeout_secs"`
	WriteTimeoutSecs   int      `toml:"write_timeout_secs"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds database settings
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// AlarmsConfig holds alarm scheduler settings
type AlarmsConfig struct {
	CourseID           int64 `toml:"course_id"`
	ReloadIntervalSecs int   `toml:"reload_interval_secs"`
}

// ReloadInterval returns the scheduler reload interval as a duration.
func (a AlarmsConfig) ReloadInterval() time.Duration {
	return time.Duration(a.ReloadIntervalSecs) * time.Second
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               3000,
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   15,
		},
		Storage: StorageConfig{
			DBPath: "coursemap.db",
		},
		Alarms: AlarmsConfig{
			CourseID:           1,
			ReloadIntervalSecs: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file
// is not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment overrides, loaded by godotenv in main
	if v := os.Getenv("COURSEMAP_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("COURSEMAP_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage db_path must not be empty")
	}
	if c.Alarms.CourseID <= 0 {
		return fmt.Errorf("invalid alarms course_id: %d", c.Alarms.CourseID)
	}
	return nil
}
