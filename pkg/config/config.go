package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// Config represents the complete application configuration.
// The file format is picked from the extension: .toml is TOML, anything
// else is JSON.
type Config struct {
	Server   ServerConfig   `json:"server" toml:"server"`
	Database DatabaseConfig `json:"database" toml:"database"`
	OpenSky  OpenSkyConfig  `json:"opensky" toml:"opensky"`
	Tracker  TrackerConfig  `json:"tracker" toml:"tracker"`
	Viewport ViewportConfig `json:"viewport" toml:"viewport"`
	Logging  LoggingConfig  `json:"logging" toml:"logging"`

	// Airlines adds or overrides airline code -> name entries
	Airlines map[string]string `json:"airlines,omitempty" toml:"airlines,omitempty"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" toml:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" toml:"host"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `json:"tls_enabled" toml:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `json:"tls_cert_file" toml:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `json:"tls_key_file" toml:"tls_key_file"`

	// StaticDir holds the browser map page (empty disables static serving)
	StaticDir string `json:"static_dir" toml:"static_dir"`

	// AllowedOrigins for CORS and WebSocket upgrades ("*" allows all)
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins"`
}

// DatabaseConfig contains database connection settings for the poll log.
type DatabaseConfig struct {
	// Enabled turns on the PostgreSQL poll log
	Enabled bool `json:"enabled" toml:"enabled"`

	// Host is the database server hostname
	Host string `json:"host" toml:"host"`

	// Port is the database server port
	Port int `json:"port" toml:"port"`

	// Database is the database name
	Database string `json:"database" toml:"database"`

	// Username for database authentication
	Username string `json:"username" toml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" toml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" toml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" toml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" toml:"max_idle_conns"`

	// RetentionHours is how long poll events are kept (default: 24)
	RetentionHours int `json:"retention_hours" toml:"retention_hours"`
}

// OpenSkyConfig contains upstream feed settings.
type OpenSkyConfig struct {
	// BaseURL is the REST API base (default: https://opensky-network.org/api)
	BaseURL string `json:"base_url" toml:"base_url"`

	// Username and Password enable basic auth (set via OPENSKY_USER / OPENSKY_PASS)
	Username string `json:"username,omitempty" toml:"username,omitempty"`
	Password string `json:"password,omitempty" toml:"password,omitempty"`

	// TimeoutSeconds bounds each upstream request (default: 10)
	TimeoutSeconds int `json:"timeout_seconds" toml:"timeout_seconds"`

	// RequestsPerSecond is shared by every session (0 = unlimited)
	RequestsPerSecond float64 `json:"requests_per_second" toml:"requests_per_second"`

	// CacheTTLSeconds is how long an answer is reused across sessions (0 disables the cache)
	CacheTTLSeconds int `json:"cache_ttl_seconds" toml:"cache_ttl_seconds"`

	// CacheSize is the number of answers kept per query type
	CacheSize int `json:"cache_size" toml:"cache_size"`
}

// TrackerConfig controls polling, backoff and the locate animation.
type TrackerConfig struct {
	// PollIntervalSeconds is the periodic refresh interval (default: 15)
	PollIntervalSeconds int `json:"poll_interval_seconds" toml:"poll_interval_seconds"`

	// BackoffInitialSeconds is the cooldown after the first rate-limited poll
	BackoffInitialSeconds int `json:"backoff_initial_seconds" toml:"backoff_initial_seconds"`

	// BackoffMaxSeconds caps the cooldown
	BackoffMaxSeconds int `json:"backoff_max_seconds" toml:"backoff_max_seconds"`

	// BackoffMultiplier grows the cooldown per consecutive rate-limited poll
	BackoffMultiplier float64 `json:"backoff_multiplier" toml:"backoff_multiplier"`

	// RespectRetryAfter lets the upstream Retry-After extend the cooldown
	RespectRetryAfter bool `json:"respect_retry_after" toml:"respect_retry_after"`

	// LocateZoom is the zoom level used when centering on a located flight
	LocateZoom float64 `json:"locate_zoom" toml:"locate_zoom"`

	// LocateTransitionMillis is the recenter animation length; the popup
	// opens when it ends
	LocateTransitionMillis int `json:"locate_transition_millis" toml:"locate_transition_millis"`
}

// ViewportConfig is the area watched by headless and terminal clients and
// the initial view offered to browsers.
type ViewportConfig struct {
	West  float64 `json:"west" toml:"west"`
	South float64 `json:"south" toml:"south"`
	East  float64 `json:"east" toml:"east"`
	North float64 `json:"north" toml:"north"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `json:"level" toml:"level"`

	// Format is console or json (default: console)
	Format string `json:"format" toml:"format"`

	// File, when set, also writes JSON entries to a rotated file
	File string `json:"file,omitempty" toml:"file,omitempty"`

	// MaxSizeMB is the rotation size for File
	MaxSizeMB int `json:"max_size_mb" toml:"max_size_mb"`

	// MaxBackups is how many rotated files are kept
	MaxBackups int `json:"max_backups" toml:"max_backups"`
}

// Load reads configuration from a JSON or TOML file.
// A .env file next to the config file (or in the working directory) is
// loaded into the environment first without overriding existing variables.
// If the config file doesn't exist, returns the default configuration.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// LoadDotEnv loads every existing file into the process environment.
// Missing files are skipped; variables already set win. A file that
// exists but cannot be parsed is an error.
func LoadDotEnv(paths ...string) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("failed to load %s: %w", abs, err)
		}
	}
	return nil
}

// Save writes the configuration in the format matching the extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = []byte(sb.String())
	} else {
		var err error
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			TLSEnabled:     false,
			StaticDir:      "web",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Enabled:        false,
			Host:           "localhost",
			Port:           5432,
			Database:       "flightmap",
			Username:       "flightmap",
			SSLMode:        "disable",
			MaxOpenConns:   10,
			MaxIdleConns:   2,
			RetentionHours: 24,
		},
		OpenSky: OpenSkyConfig{
			BaseURL:           opensky.DefaultBaseURL,
			TimeoutSeconds:    10,
			RequestsPerSecond: 1,
			CacheTTLSeconds:   5,
			CacheSize:         256,
		},
		Tracker: TrackerConfig{
			PollIntervalSeconds:    15,
			BackoffInitialSeconds:  15,
			BackoffMaxSeconds:      300,
			BackoffMultiplier:      2.0,
			RespectRetryAfter:      true,
			LocateZoom:             8,
			LocateTransitionMillis: 2000,
		},
		// Roughly what a map centered on [10, 45] at zoom 4 shows
		Viewport: ViewportConfig{
			West:  -12,
			South: 34,
			East:  32,
			North: 56,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  64,
			MaxBackups: 3,
		},
	}
}

// Validate checks value ranges and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.TLSEnabled && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.tls_cert_file and server.tls_key_file are required when TLS is enabled"))
	}
	if c.OpenSky.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("opensky.timeout_seconds must be positive"))
	}
	if c.OpenSky.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("opensky.requests_per_second must not be negative"))
	}
	if c.Tracker.PollIntervalSeconds <= 0 {
		errs = append(errs, errors.New("tracker.poll_interval_seconds must be positive"))
	}
	if c.Tracker.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("tracker.backoff_multiplier must be at least 1"))
	}
	if c.Tracker.BackoffMaxSeconds < c.Tracker.BackoffInitialSeconds {
		errs = append(errs, errors.New("tracker.backoff_max_seconds must not be below backoff_initial_seconds"))
	}
	if c.Tracker.LocateZoom < 0 || c.Tracker.LocateZoom > 22 {
		errs = append(errs, errors.New("tracker.locate_zoom must be between 0 and 22"))
	}
	if c.Tracker.LocateTransitionMillis < 0 {
		errs = append(errs, errors.New("tracker.locate_transition_millis must not be negative"))
	}
	if err := c.Viewport.BoundingBox().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("viewport: %w", err))
	}
	if c.Database.Enabled && c.Database.Database == "" {
		errs = append(errs, errors.New("database.database is required when the poll log is enabled"))
	}

	return errors.Join(errs...)
}

// PollInterval returns the refresh interval as a duration.
func (t TrackerConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSeconds) * time.Second
}

// LocateTransition returns the recenter animation length.
func (t TrackerConfig) LocateTransition() time.Duration {
	return time.Duration(t.LocateTransitionMillis) * time.Millisecond
}

// Backoff returns the cooldown policy for rate-limited polls.
func (t TrackerConfig) Backoff() opensky.BackoffConfig {
	return opensky.BackoffConfig{
		InitialDelay:      time.Duration(t.BackoffInitialSeconds) * time.Second,
		MaxDelay:          time.Duration(t.BackoffMaxSeconds) * time.Second,
		Multiplier:        t.BackoffMultiplier,
		RespectRetryAfter: t.RespectRetryAfter,
	}
}

// ClientConfig converts the section into an opensky.ClientConfig.
func (o OpenSkyConfig) ClientConfig() opensky.ClientConfig {
	return opensky.ClientConfig{
		BaseURL:           o.BaseURL,
		Username:          o.Username,
		Password:          o.Password,
		Timeout:           time.Duration(o.TimeoutSeconds) * time.Second,
		RequestsPerSecond: o.RequestsPerSecond,
	}
}

// CacheTTL returns the cache lifetime.
func (o OpenSkyConfig) CacheTTL() time.Duration {
	return time.Duration(o.CacheTTLSeconds) * time.Second
}

// BoundingBox returns the viewport as a bounding box.
func (v ViewportConfig) BoundingBox() coordinates.BoundingBox {
	return coordinates.BoundingBox{West: v.West, South: v.South, East: v.East, North: v.North}
}

// DSN builds a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.Username,
		d.Password,
		d.Database,
		d.SSLMode,
	)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows credentials to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("FLIGHTMAP_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("FLIGHTMAP_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if dbEnabled := os.Getenv("FLIGHTMAP_DB_ENABLED"); dbEnabled != "" {
		if v, err := strconv.ParseBool(dbEnabled); err == nil {
			c.Database.Enabled = v
		}
	}
	if user := os.Getenv("OPENSKY_USER"); user != "" {
		c.OpenSky.Username = user
	}
	if pass := os.Getenv("OPENSKY_PASS"); pass != "" {
		c.OpenSky.Password = pass
	}
	if level := os.Getenv("FLIGHTMAP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
