package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Data source kinds
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// AppConfig holds all configuration for the dashboard
type AppConfig struct {
	Server    ServerSettings    `yaml:"server"`
	Data      DataSettings      `yaml:"data"`
	Archive   ArchiveSettings   `yaml:"archive"`
	Dashboard DashboardSettings `yaml:"dashboard"`
	Logging   LoggingConfig     `yaml:"logging"`
}

// ServerSettings contains HTTP server configuration
type ServerSettings struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	AdminToken     string        `yaml:"admin_token"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DataSettings says where the readings table comes from
type DataSettings struct {
	Path   string `yaml:"path"`
	Source string `yaml:"source"`
	// Watch resets the cache when the file at Path changes.
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// ArchiveSettings contains the SQLite archive configuration
type ArchiveSettings struct {
	DBPath string `yaml:"db_path"`
}

// DashboardSettings holds the page texts and the low-efficiency cut-off
type DashboardSettings struct {
	Title                  string  `yaml:"title"`
	Subtitle               string  `yaml:"subtitle"`
	Footer                 string  `yaml:"footer"`
	LowEfficiencyThreshold float64 `yaml:"low_efficiency_threshold"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied
func Default() *AppConfig {
	var config AppConfig
	config.ApplyDefaults()
	return &config
}

// LoadAppConfig loads configuration from a YAML file. A missing file is not an
// error; defaults and environment overrides are used instead.
func LoadAppConfig(path string) (*AppConfig, error) {
	var config AppConfig

	yamlData, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(yamlData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.ApplyDefaults()
	if err := config.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults sets default values for any unset fields
func (ac *AppConfig) ApplyDefaults() {
	if ac.Server.Port == 0 {
		ac.Server.Port = 8501
	}
	if ac.Server.Host == "" {
		ac.Server.Host = "localhost"
	}
	if ac.Server.ReadTimeout == 0 {
		ac.Server.ReadTimeout = 60 * time.Second
	}
	if ac.Server.WriteTimeout == 0 {
		ac.Server.WriteTimeout = 10 * time.Second
	}
	if ac.Data.Path == "" {
		ac.Data.Path = "dashboard/merged_solar_data.csv"
	}
	if ac.Data.Source == "" {
		ac.Data.Source = SourceCSV
	}
	if ac.Data.WatchDebounce == 0 {
		ac.Data.WatchDebounce = 500 * time.Millisecond
	}
	if ac.Archive.DBPath == "" {
		ac.Archive.DBPath = "./data/solardash.db"
	}
	if ac.Dashboard.Title == "" {
		ac.Dashboard.Title = "Solar Energy Efficiency Dashboard"
	}
	if ac.Dashboard.Subtitle == "" {
		ac.Dashboard.Subtitle = "Track efficiency, feature impact, and improvement suggestions using SHAP analysis."
	}
	if ac.Dashboard.Footer == "" {
		ac.Dashboard.Footer = "Made with ❤️ for Capstone Project"
	}
	if ac.Dashboard.LowEfficiencyThreshold == 0 {
		ac.Dashboard.LowEfficiencyThreshold = 50
	}
	if ac.Logging.Level == "" {
		ac.Logging.Level = "info"
	}
	if ac.Logging.Format == "" {
		ac.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (ac *AppConfig) OverrideFromEnv() error {
	// Only override if environment variable is set (non-empty)
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		ac.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		ac.Server.Host = v
	}
	if v := os.Getenv("SERVER_ADMIN_TOKEN"); v != "" {
		ac.Server.AdminToken = v
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		ac.Data.Path = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		ac.Data.Source = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		ac.Logging.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (ac *AppConfig) Validate() error {
	if ac.Server.Port < 1 || ac.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	switch ac.Data.Source {
	case SourceCSV:
		if ac.Data.Path == "" {
			return fmt.Errorf("data path is required for the csv source")
		}
	case SourceSQLite:
		if ac.Archive.DBPath == "" {
			return fmt.Errorf("archive db path is required for the sqlite source")
		}
	default:
		return fmt.Errorf("data source must be %q or %q, got %q", SourceCSV, SourceSQLite, ac.Data.Source)
	}
	if ac.Data.Watch && ac.Data.Source != SourceCSV {
		return fmt.Errorf("data watch is only supported for the csv source")
	}
	if ac.Dashboard.LowEfficiencyThreshold < 0 {
		return fmt.Errorf("low efficiency threshold must not be negative")
	}
	switch ac.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", ac.Logging.Level)
	}
	if ac.Logging.Format != "json" && ac.Logging.Format != "console" {
		return fmt.Errorf("log format must be json or console")
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (ac *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ac.Server.Host, ac.Server.Port)
}

// String returns a safe string representation (hides admin token)
func (ac *AppConfig) String() string {
	return fmt.Sprintf("AppConfig{Server: [Addr=%s, Token=%s, Origins=%v], Data: %+v, Archive: %+v, Dashboard: [Threshold=%.1f], Logging: %+v}",
		ac.Addr(),
		maskToken(ac.Server.AdminToken),
		ac.Server.AllowedOrigins,
		ac.Data,
		ac.Archive,
		ac.Dashboard.LowEfficiencyThreshold,
		ac.Logging,
	)
}

// maskToken masks all but first 4 characters of a token
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
