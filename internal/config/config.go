package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config holds all sync client configuration
type Config struct {
	StatusAddress string `json:"statusAddress"`
	DatabasePath  string `json:"databasePath"`
	DatabaseURL   string `json:"databaseUrl"`
	TenantID      string `json:"tenantId"`
	Remote        Remote `json:"remote"`
	Sync          Sync   `json:"sync"`
	Live          Live   `json:"live"`
}

// Remote configures the upstream multi-tenant API
type Remote struct {
	BaseURL      string `json:"baseUrl"`
	WebsocketURL string `json:"websocketUrl"`
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// Sync configures queue draining and retry policy
type Sync struct {
	DrainIntervalSeconds int `json:"drainIntervalSeconds"`
	ProbeIntervalSeconds int `json:"probeIntervalSeconds"`
	MaxAttempts          int `json:"maxAttempts"`
	DebounceMillis       int `json:"debounceMillis"`
}

// Live configures the push subscription and its polling fallback
type Live struct {
	ConfirmWindowSeconds int      `json:"confirmWindowSeconds"`
	PollIntervalSeconds  int      `json:"pollIntervalSeconds"`
	Tables               []string `json:"tables"`
}

// UsePostgres returns true if the shared PostgreSQL store should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// DrainInterval returns the periodic drain interval
func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.Sync.DrainIntervalSeconds) * time.Second
}

// ProbeInterval returns the connectivity probe interval
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Sync.ProbeIntervalSeconds) * time.Second
}

// Debounce returns the search quiet interval
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMillis) * time.Millisecond
}

// ConfirmWindow returns the subscription confirmation window
func (c *Config) ConfirmWindow() time.Duration {
	return time.Duration(c.Live.ConfirmWindowSeconds) * time.Second
}

// PollInterval returns the degraded-mode polling interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Live.PollIntervalSeconds) * time.Second
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		StatusAddress: ":5600",
		DatabasePath:  "rms-sync.db",
		Remote: Remote{
			BaseURL:      "http://localhost:5000",
			WebsocketURL: "ws://localhost:5000/api/live",
			APIKeyHeader: "X-API-Key",
		},
		Sync: Sync{
			DrainIntervalSeconds: 30,
			ProbeIntervalSeconds: 15,
			MaxAttempts:          5,
			DebounceMillis:       300,
		},
		Live: Live{
			ConfirmWindowSeconds: 10,
			PollIntervalSeconds:  30,
			Tables: []string{
				"customers", "branches", "employees", "food-items",
				"menus", "orders", "taxes",
			},
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "rms-sync.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("STATUS_ADDRESS"); addr != "" {
		cfg.StatusAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if tenant := os.Getenv("TENANT_ID"); tenant != "" {
		cfg.TenantID = tenant
	}
	if baseURL := os.Getenv("API_BASE_URL"); baseURL != "" {
		cfg.Remote.BaseURL = baseURL
	}
	if wsURL := os.Getenv("API_WEBSOCKET_URL"); wsURL != "" {
		cfg.Remote.WebsocketURL = wsURL
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Remote.APIKey = apiKey
	}
	if interval := os.Getenv("SYNC_DRAIN_INTERVAL_SECONDS"); interval != "" {
		if seconds, err := strconv.Atoi(interval); err == nil && seconds > 0 {
			cfg.Sync.DrainIntervalSeconds = seconds
		}
	}
	if attempts := os.Getenv("SYNC_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil && n > 0 {
			cfg.Sync.MaxAttempts = n
		}
	}
	if window := os.Getenv("LIVE_CONFIRM_WINDOW_SECONDS"); window != "" {
		if seconds, err := strconv.Atoi(window); err == nil && seconds > 0 {
			cfg.Live.ConfirmWindowSeconds = seconds
		}
	}
	if interval := os.Getenv("LIVE_POLL_INTERVAL_SECONDS"); interval != "" {
		if seconds, err := strconv.Atoi(interval); err == nil && seconds > 0 {
			cfg.Live.PollIntervalSeconds = seconds
		}
	}

	return cfg, nil
}
