package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string       `json:"serverAddress" mapstructure:"serverAddress"`
	DatabasePath  string       `json:"databasePath" mapstructure:"databasePath"`
	DatabaseURL   string       `json:"databaseUrl" mapstructure:"databaseUrl"`
	PhotoStorage  PhotoStorage `json:"photoStorage" mapstructure:"photoStorage"`
	Security      Security     `json:"security" mapstructure:"security"`
	Summary       Summary      `json:"summary" mapstructure:"summary"`
	Sessions      Sessions     `json:"sessions" mapstructure:"sessions"`
	Metrics       Metrics      `json:"metrics" mapstructure:"metrics"`
	Catalog       Catalog      `json:"catalog" mapstructure:"catalog"`
	Telemetry     Telemetry    `json:"telemetry" mapstructure:"telemetry"`
	LogLevel      string       `json:"logLevel" mapstructure:"logLevel"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// PhotoStorage configuration
type PhotoStorage struct {
	BasePath          string   `json:"basePath" mapstructure:"basePath"`
	MaxFileSizeMB     int64    `json:"maxFileSizeMB" mapstructure:"maxFileSizeMB"`
	AllowedExtensions []string `json:"allowedExtensions" mapstructure:"allowedExtensions"`
}

// Security configuration
type Security struct {
	APIKey       string `json:"apiKey" mapstructure:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader" mapstructure:"apiKeyHeader"`
	UserIDHeader string `json:"userIdHeader" mapstructure:"userIdHeader"`
}

// Summary configures the generated check-in summaries
type Summary struct {
	APIKey          string `json:"apiKey" mapstructure:"apiKey"`
	Model           string `json:"model" mapstructure:"model"`
	TimeoutSeconds  int    `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	MaxOutputTokens int    `json:"maxOutputTokens" mapstructure:"maxOutputTokens"`
	MaxSummaryChars int    `json:"maxSummaryChars" mapstructure:"maxSummaryChars"`
}

// Timeout returns the summary deadline as a duration
func (s Summary) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Sessions configures live check-in session housekeeping
type Sessions struct {
	IdleTimeoutMinutes   int `json:"idleTimeoutMinutes" mapstructure:"idleTimeoutMinutes"`
	SweepIntervalMinutes int `json:"sweepIntervalMinutes" mapstructure:"sweepIntervalMinutes"`
}

// IdleTimeout returns how long an untouched session survives
func (s Sessions) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMinutes) * time.Minute
}

// SweepInterval returns how often idle sessions are collected
func (s Sessions) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMinutes) * time.Minute
}

// Metrics configures the dashboard
type Metrics struct {
	StreakLookback int `json:"streakLookback" mapstructure:"streakLookback"`
	RecentLimit    int `json:"recentLimit" mapstructure:"recentLimit"`
}

// Catalog points at an optional test template file
type Catalog struct {
	Path string `json:"path" mapstructure:"path"`
}

// Telemetry configures OpenTelemetry export
type Telemetry struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`
	Environment    string `json:"environment" mapstructure:"environment"`
	ServiceVersion string `json:"serviceVersion" mapstructure:"serviceVersion"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serverAddress", ":5000")
	v.SetDefault("databasePath", "skintrack.db")
	v.SetDefault("databaseUrl", "")
	v.SetDefault("logLevel", "info")

	v.SetDefault("photoStorage.basePath", "./photos")
	v.SetDefault("photoStorage.maxFileSizeMB", 20)
	v.SetDefault("photoStorage.allowedExtensions", []string{".jpg", ".jpeg", ".png", ".webp", ".heic"})

	v.SetDefault("security.apiKey", "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS")
	v.SetDefault("security.apiKeyHeader", "X-API-Key")
	v.SetDefault("security.userIdHeader", "X-User-ID")

	v.SetDefault("summary.apiKey", "")
	v.SetDefault("summary.model", "gemini-2.5-flash")
	v.SetDefault("summary.timeoutSeconds", 30)
	v.SetDefault("summary.maxOutputTokens", 400)
	v.SetDefault("summary.maxSummaryChars", 1200)

	v.SetDefault("sessions.idleTimeoutMinutes", 30)
	v.SetDefault("sessions.sweepIntervalMinutes", 5)

	v.SetDefault("metrics.streakLookback", 30)
	v.SetDefault("metrics.recentLimit", 5)

	v.SetDefault("catalog.path", "")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.serviceVersion", "1.0.0")
}

var envBindings = map[string]string{
	"serverAddress":               "SERVER_ADDRESS",
	"databasePath":                "DATABASE_PATH",
	"databaseUrl":                 "DATABASE_URL",
	"logLevel":                    "LOG_LEVEL",
	"photoStorage.basePath":       "PHOTO_STORAGE_PATH",
	"security.apiKey":             "API_KEY",
	"summary.apiKey":              "GEMINI_API_KEY",
	"summary.model":               "GEMINI_MODEL",
	"summary.timeoutSeconds":      "SUMMARY_TIMEOUT_SECONDS",
	"sessions.idleTimeoutMinutes": "SESSION_IDLE_MINUTES",
	"catalog.path":                "TEST_CATALOG_PATH",
	"telemetry.enabled":           "OTEL_ENABLED",
	"telemetry.endpoint":          "OTEL_EXPORTER_OTLP_ENDPOINT",
	"telemetry.environment":       "ENVIRONMENT",
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	return LoadFile(configPath)
}

// LoadFile reads configuration from a JSON file, if it exists, and applies
// environment overrides on top
func LoadFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Ensure photo storage directory exists
	if err := os.MkdirAll(cfg.PhotoStorage.BasePath, 0755); err != nil {
		return nil, err
	}

	// Make base path absolute
	absPath, err := filepath.Abs(cfg.PhotoStorage.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.PhotoStorage.BasePath = absPath

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Summary.TimeoutSeconds <= 0 {
		return fmt.Errorf("summary.timeoutSeconds must be positive, got %d", c.Summary.TimeoutSeconds)
	}
	if c.Sessions.IdleTimeoutMinutes <= 0 {
		return fmt.Errorf("sessions.idleTimeoutMinutes must be positive, got %d", c.Sessions.IdleTimeoutMinutes)
	}
	if c.Sessions.SweepIntervalMinutes <= 0 {
		return fmt.Errorf("sessions.sweepIntervalMinutes must be positive, got %d", c.Sessions.SweepIntervalMinutes)
	}
	if c.Metrics.StreakLookback <= 0 {
		return fmt.Errorf("metrics.streakLookback must be positive, got %d", c.Metrics.StreakLookback)
	}
	if c.PhotoStorage.MaxFileSizeMB <= 0 {
		return fmt.Errorf("photoStorage.maxFileSizeMB must be positive, got %d", c.PhotoStorage.MaxFileSizeMB)
	}
	return nil
}
