package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WorldServer holds all configuration for the world server.
type WorldServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Client handshake
	ClientVersion      uint16 `yaml:"client_version"`
	AutoCreateAccounts bool   `yaml:"auto_create_accounts"`

	// World data
	SavePrefix string `yaml:"save_prefix"` // prefix for the binary world snapshot
	ExportDir  string `yaml:"export_dir"`  // target for plain-text map export

	// Cycle timing
	CycleIntervalMS     int `yaml:"cycle_interval_ms"`
	SaveIntervalSeconds int `yaml:"save_interval_seconds"`

	// Database
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// CycleInterval returns the cycle tick interval as a duration.
func (w WorldServer) CycleInterval() time.Duration {
	return time.Duration(w.CycleIntervalMS) * time.Millisecond
}

// SaveInterval returns the periodic snapshot interval as a duration.
func (w WorldServer) SaveInterval() time.Duration {
	return time.Duration(w.SaveIntervalSeconds) * time.Second
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultWorldServer returns WorldServer config with sensible defaults.
func DefaultWorldServer() WorldServer {
	return WorldServer{
		BindAddress:         "0.0.0.0",
		Port:                3012,
		ClientVersion:       20,
		AutoCreateAccounts:  false,
		SavePrefix:          "data/world",
		ExportDir:           "export",
		CycleIntervalMS:     100,
		SaveIntervalSeconds: 900,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "worldserver",
			Password: "worldserver",
			DBName:   "worldserver",
			SSLMode:  "disable",
		},
	}
}

// LoadWorldServer loads world server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadWorldServer(path string) (WorldServer, error) {
	cfg := DefaultWorldServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
