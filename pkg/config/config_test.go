package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// unsetEnv clears a variable for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.TLSEnabled {
		t.Error("Expected TLS disabled by default")
	}

	// Database defaults
	if cfg.Database.Enabled {
		t.Error("Expected poll log disabled by default")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected default postgres port 5432, got %d", cfg.Database.Port)
	}

	// OpenSky defaults
	if cfg.OpenSky.TimeoutSeconds != 10 {
		t.Errorf("Expected 10s timeout, got %d", cfg.OpenSky.TimeoutSeconds)
	}
	if cfg.OpenSky.BaseURL != "https://opensky-network.org/api" {
		t.Errorf("Unexpected base URL %s", cfg.OpenSky.BaseURL)
	}

	// Tracker defaults
	if cfg.Tracker.PollInterval() != 15*time.Second {
		t.Errorf("Expected poll interval 15s, got %v", cfg.Tracker.PollInterval())
	}
	if cfg.Tracker.LocateZoom != 8 {
		t.Errorf("Expected locate zoom 8, got %f", cfg.Tracker.LocateZoom)
	}
	if cfg.Tracker.LocateTransition() != 2*time.Second {
		t.Errorf("Expected locate transition 2s, got %v", cfg.Tracker.LocateTransition())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got: %v", err)
	}
}

// TestLoadNonExistentFile tests that Load returns default config when file doesn't exist.
func TestLoadNonExistentFile(t *testing.T) {
	unsetEnv(t, "FLIGHTMAP_PORT")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config, got nil")
	}
	if cfg.Server.Port != "8080" {
		t.Error("Did not get default config for non-existent file")
	}
}

// TestLoadValidConfig tests loading a JSON configuration file.
func TestLoadValidConfig(t *testing.T) {
	unsetEnv(t, "FLIGHTMAP_PORT")

	configPath := filepath.Join(t.TempDir(), "test-config.json")

	raw := `{
		"server": {"port": "9090", "host": "127.0.0.1"},
		"database": {"enabled": true, "host": "db.example.com", "port": 5433, "database": "testdb"},
		"tracker": {"poll_interval_seconds": 30},
		"viewport": {"west": -5, "south": 50, "east": 2, "north": 56},
		"airlines": {"WZZ": "Wizz Air"}
	}`
	if err := os.WriteFile(configPath, []byte(raw), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if !cfg.Database.Enabled || cfg.Database.Host != "db.example.com" {
		t.Errorf("Unexpected database section: %+v", cfg.Database)
	}
	if cfg.Tracker.PollIntervalSeconds != 30 {
		t.Errorf("Expected poll interval 30, got %d", cfg.Tracker.PollIntervalSeconds)
	}
	// Unset fields keep their defaults
	if cfg.Tracker.LocateZoom != 8 {
		t.Errorf("Expected default locate zoom 8, got %f", cfg.Tracker.LocateZoom)
	}
	if cfg.Viewport.BoundingBox().North != 56 {
		t.Errorf("Expected viewport north 56, got %f", cfg.Viewport.North)
	}
	if cfg.Airlines["WZZ"] != "Wizz Air" {
		t.Errorf("Expected WZZ airline entry, got %v", cfg.Airlines)
	}
}

// TestLoadTOMLConfig tests loading a TOML configuration file.
func TestLoadTOMLConfig(t *testing.T) {
	unsetEnv(t, "FLIGHTMAP_PORT")
	unsetEnv(t, "FLIGHTMAP_LOG_LEVEL")

	configPath := filepath.Join(t.TempDir(), "flightmap.toml")
	raw := `
[server]
port = "8181"
allowed_origins = ["https://map.example.com"]

[opensky]
requests_per_second = 0.5
cache_ttl_seconds = 0

[tracker]
poll_interval_seconds = 20
locate_zoom = 9.5

[logging]
level = "debug"
format = "json"

[airlines]
WZZ = "Wizz Air"
`
	if err := os.WriteFile(configPath, []byte(raw), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "8181" {
		t.Errorf("Expected port 8181, got %s", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://map.example.com" {
		t.Errorf("Unexpected allowed origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.OpenSky.RequestsPerSecond != 0.5 || cfg.OpenSky.CacheTTL() != 0 {
		t.Errorf("Unexpected opensky section %+v", cfg.OpenSky)
	}
	if cfg.Tracker.LocateZoom != 9.5 {
		t.Errorf("Expected locate zoom 9.5, got %f", cfg.Tracker.LocateZoom)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging section %+v", cfg.Logging)
	}
	if cfg.Airlines["WZZ"] != "Wizz Air" {
		t.Errorf("Expected WZZ airline entry, got %v", cfg.Airlines)
	}
}

// TestLoadInvalidJSON tests error handling for malformed JSON.
func TestLoadInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.json")

	if err := os.WriteFile(configPath, []byte("{ invalid json }"), 0644); err != nil {
		t.Fatalf("Failed to write invalid config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid JSON, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("Expected parse error, got: %v", err)
	}
}

// TestSaveConfig tests saving configuration in both formats.
func TestSaveConfig(t *testing.T) {
	unsetEnv(t, "FLIGHTMAP_PORT")

	for _, name := range []string{"saved.json", "saved.toml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "nested", name)

			cfg := DefaultConfig()
			cfg.Server.Port = "9999"
			cfg.Tracker.PollIntervalSeconds = 42
			cfg.Airlines = map[string]string{"WZZ": "Wizz Air"}

			if err := cfg.Save(configPath); err != nil {
				t.Fatalf("Failed to save config: %v", err)
			}

			loaded, err := Load(configPath)
			if err != nil {
				t.Fatalf("Failed to load saved config: %v", err)
			}

			if loaded.Server.Port != "9999" {
				t.Errorf("Expected port 9999, got %s", loaded.Server.Port)
			}
			if loaded.Tracker.PollIntervalSeconds != 42 {
				t.Errorf("Expected poll interval 42, got %d", loaded.Tracker.PollIntervalSeconds)
			}
			if loaded.Airlines["WZZ"] != "Wizz Air" {
				t.Errorf("Expected airlines to round trip, got %v", loaded.Airlines)
			}
		})
	}
}

// TestEnvironmentOverrides tests environment variable overrides.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FLIGHTMAP_PORT", "7777")
	t.Setenv("FLIGHTMAP_DB_PASSWORD", "env-password")
	t.Setenv("FLIGHTMAP_DB_ENABLED", "true")
	t.Setenv("OPENSKY_USER", "env-user")
	t.Setenv("OPENSKY_PASS", "env-pass")
	t.Setenv("FLIGHTMAP_LOG_LEVEL", "warn")

	configPath := filepath.Join(t.TempDir(), "config.json")
	testCfg := DefaultConfig()
	testCfg.Database.Password = "original-password"

	data, _ := json.Marshal(testCfg)
	os.WriteFile(configPath, data, 0644)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "7777" {
		t.Errorf("Expected port 7777 from env, got %s", cfg.Server.Port)
	}
	if cfg.Database.Password != "env-password" {
		t.Errorf("Expected env-password from env, got %s", cfg.Database.Password)
	}
	if !cfg.Database.Enabled {
		t.Error("Expected poll log enabled from env")
	}
	if cfg.OpenSky.Username != "env-user" || cfg.OpenSky.Password != "env-pass" {
		t.Errorf("Expected OpenSky credentials from env, got %s/%s", cfg.OpenSky.Username, cfg.OpenSky.Password)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", cfg.Logging.Level)
	}
}

// TestDotEnv tests that a .env file next to the config is honoured.
func TestDotEnv(t *testing.T) {
	unsetEnv(t, "OPENSKY_USER")
	unsetEnv(t, "OPENSKY_PASS")

	dir := t.TempDir()
	envFile := "OPENSKY_USER=dotenv-user\nOPENSKY_PASS=dotenv-pass\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	cfg, err := Load(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.OpenSky.Username != "dotenv-user" || cfg.OpenSky.Password != "dotenv-pass" {
		t.Errorf("Expected credentials from .env, got %s/%s", cfg.OpenSky.Username, cfg.OpenSky.Password)
	}
}

// TestDotEnvParseError tests that a malformed .env is reported.
func TestDotEnvParseError(t *testing.T) {
	unsetEnv(t, "OPENSKY_USER")

	dir := t.TempDir()
	envFile := "OPENSKY_USER=dotenv-user\n$$$=broken\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for malformed .env")
	}
	if err := LoadDotEnv(filepath.Join(dir, "absent.env")); err != nil {
		t.Errorf("Expected missing .env to be skipped, got %v", err)
	}
}

// TestValidate tests range checks.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Zero poll interval", func(c *Config) { c.Tracker.PollIntervalSeconds = 0 }, "poll_interval_seconds"},
		{"Zoom too large", func(c *Config) { c.Tracker.LocateZoom = 30 }, "locate_zoom"},
		{"Viewport out of range", func(c *Config) { c.Viewport.North = 95 }, "viewport"},
		{"TLS without files", func(c *Config) { c.Server.TLSEnabled = true }, "tls_cert_file"},
		{"Backoff max below initial", func(c *Config) { c.Tracker.BackoffMaxSeconds = 1 }, "backoff_max_seconds"},
		{"Zero timeout", func(c *Config) { c.OpenSky.TimeoutSeconds = 0 }, "timeout_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

// TestDerivedSettings tests conversion helpers used by the commands.
func TestDerivedSettings(t *testing.T) {
	cfg := DefaultConfig()

	b := cfg.Tracker.Backoff()
	if b.InitialDelay != 15*time.Second || b.MaxDelay != 5*time.Minute || b.Multiplier != 2 {
		t.Errorf("Unexpected backoff %+v", b)
	}

	cc := cfg.OpenSky.ClientConfig()
	if cc.Timeout != 10*time.Second || cc.RequestsPerSecond != 1 {
		t.Errorf("Unexpected client config %+v", cc)
	}

	dsn := cfg.Database.DSN()
	if !strings.Contains(dsn, "dbname=flightmap") || !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("Unexpected DSN %s", dsn)
	}
}
