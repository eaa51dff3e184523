// Package config provides XML-based configuration for the boss timer server.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/labstack/gommon/bytes"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"BossTimer"`

	Server   ServerConfig   `xml:"Server"`
	Storage  StorageConfig  `xml:"Storage"`
	Analysis AnalysisConfig `xml:"Analysis"`
	Alerts   AlertsConfig   `xml:"Alerts"`
	Session  SessionConfig  `xml:"Session"`
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"` // comma separated
	// No read or write timeout: progress streams and the alert websocket are long-lived.
	ReadHeaderTimeout int    `xml:"ReadHeaderTimeoutSeconds"`
	IdleTimeout       int    `xml:"IdleTimeoutSeconds"`
	BodyLimit         string `xml:"BodyLimit"`
}

// StorageConfig contains screenshot storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"` // empty: <DataDirectory>/uploads
	MaxFileSize      string `xml:"MaxFileSize"`
}

// AnalysisConfig contains model and rate settings
type AnalysisConfig struct {
	Model              string `xml:"Model"`
	APIKey             string `xml:"APIKey"`
	TimeoutSeconds     int    `xml:"TimeoutSeconds"`
	MinIntervalSeconds int    `xml:"MinIntervalSeconds"`
	Burst              int    `xml:"Burst"`
	MaxFilesPerSession int    `xml:"MaxFilesPerSession"`
	RulesFile          string `xml:"RulesFile"` // empty: <DataDirectory>/boss-rules.yaml
}

// AlertsConfig contains spawn watcher settings
type AlertsConfig struct {
	LookaheadSeconds   int    `xml:"LookaheadSeconds"`
	PastThresholdHours int    `xml:"PastThresholdHours"`
	TickIntervalMillis int    `xml:"TickIntervalMillis"`
	Title              string `xml:"Title"`
	TimeZone           string `xml:"TimeZone"` // IANA name; empty means the server's local zone
}

// SessionConfig contains session lifecycle settings
type SessionConfig struct {
	MaxSessions            int `xml:"MaxSessions"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	EnableCompression       bool   `xml:"EnableCompression"`
	CompressionLevel        int    `xml:"CompressionLevel"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			BodyLimit:    "64M",
			IdleTimeout:  120,

			ReadHeaderTimeout: 10,
		},
		Storage: StorageConfig{
			DataDirectory: "./data",
			MaxFileSize:   "20M",
		},
		Analysis: AnalysisConfig{
			Model:              "gemini-2.5-flash",
			TimeoutSeconds:     120,
			MinIntervalSeconds: 10,
			Burst:              3,
			MaxFilesPerSession: 10,
		},
		Alerts: AlertsConfig{
			LookaheadSeconds:   60,
			PastThresholdHours: 12,
			TickIntervalMillis: 1000,
			Title:              "보스 출현 알림",
		},
		Session: SessionConfig{
			MaxSessions:            100,
			SessionTimeoutMinutes:  120,
			CleanupIntervalMinutes: 5,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			EnableCompression:       true,
			CompressionLevel:        5,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from an XML file, writing the defaults there first when
// the file does not exist. Environment variables override file values.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save atomically writes the configuration to an XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Boss Timer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := renameio.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Analysis.APIKey = key
	} else if key := os.Getenv("API_KEY"); key != "" {
		c.Analysis.APIKey = key
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
	if tz := os.Getenv("TZ_NAME"); tz != "" {
		c.Alerts.TimeZone = tz
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if c.Storage.UploadsDirectory == "" {
		c.Storage.UploadsDirectory = filepath.Join(c.Storage.DataDirectory, "uploads")
	} else if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if c.Analysis.RulesFile == "" {
		c.Analysis.RulesFile = filepath.Join(c.Storage.DataDirectory, "boss-rules.yaml")
	} else if !filepath.IsAbs(c.Analysis.RulesFile) {
		c.Analysis.RulesFile = filepath.Join(configDir, c.Analysis.RulesFile)
	}
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("Server.Port out of range: %d", c.Server.Port))
	}
	if _, err := bytes.Parse(c.Storage.MaxFileSize); err != nil {
		errs = append(errs, fmt.Errorf("Storage.MaxFileSize: %w", err))
	}
	if _, err := bytes.Parse(c.Server.BodyLimit); err != nil {
		errs = append(errs, fmt.Errorf("Server.BodyLimit: %w", err))
	}
	if c.Analysis.MaxFilesPerSession < 1 {
		errs = append(errs, fmt.Errorf("Analysis.MaxFilesPerSession must be positive"))
	}
	if c.Alerts.LookaheadSeconds < 1 {
		errs = append(errs, fmt.Errorf("Alerts.LookaheadSeconds must be positive"))
	}
	if c.Alerts.PastThresholdHours < 1 || c.Alerts.PastThresholdHours > 24 {
		errs = append(errs, fmt.Errorf("Alerts.PastThresholdHours must be within 1..24"))
	}
	if c.Session.CleanupIntervalMinutes < 1 {
		errs = append(errs, fmt.Errorf("Session.CleanupIntervalMinutes must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location returns the time zone used for fallback reference times and alerts.
func (c *AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Alerts.TimeZone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("Alerts.TimeZone: %w", err)
	}
	return loc, nil
}

// MaxFileSizeBytes returns the parsed per-screenshot limit.
func (c *AppConfig) MaxFileSizeBytes() int64 {
	n, err := bytes.Parse(c.Storage.MaxFileSize)
	if err != nil {
		return 0
	}
	return n
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// Seconds converts a whole-second setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	for _, dir := range []string{c.Storage.DataDirectory, c.Storage.UploadsDirectory} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
