package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultPingInterval   = 20 * time.Second
	DefaultPingTimeout    = 5 * time.Second
	DefaultStatusBind     = "127.0.0.1:4620"
)

// Config represents the complete remotia configuration
type Config struct {
	Gateway     GatewayConfig    `yaml:"gateway"`
	API         APIConfig        `yaml:"api"`
	Auth        AuthConfig       `yaml:"auth"`
	Device      DeviceConfig     `yaml:"device"`
	Permissions PermissionConfig `yaml:"permissions"`
	Status      StatusConfig     `yaml:"status"`
}

// GatewayConfig describes the realtime command gateway.
type GatewayConfig struct {
	// URL is the websocket endpoint of the command gateway (ws:// or wss://).
	URL string `yaml:"url"`
	// ReconnectDelay is the fixed delay before a single scheduled reconnect
	// after an abnormal transport close.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
}

// APIConfig describes the REST backend the channel collaborates with.
type APIConfig struct {
	// BaseURL is the root of the REST backend (share lookups).
	BaseURL string `yaml:"base_url"`
	// RefreshURL is the token refresh endpoint. Defaults to
	// BaseURL + "/auth/refresh" when empty.
	RefreshURL string `yaml:"refresh_url"`
}

// AuthConfig holds token bootstrap settings.
type AuthConfig struct {
	// TokenFile points at a YAML file holding the initial
	// access_token/refresh_token pair.
	TokenFile string `yaml:"token_file"`
}

// DeviceConfig identifies the device this session controls.
type DeviceConfig struct {
	ID    string `yaml:"id"`
	Owner bool   `yaml:"owner"`
}

// PermissionConfig tunes command gating.
type PermissionConfig struct {
	// Strict rejects command types outside the known namespaces instead of
	// allowing them through.
	Strict bool `yaml:"strict"`
}

// StatusConfig configures the local status/metrics HTTP listener.
type StatusConfig struct {
	Bind    string `yaml:"bind"`
	Enabled bool   `yaml:"enabled"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ReconnectDelay: DefaultReconnectDelay,
			PingInterval:   DefaultPingInterval,
			PingTimeout:    DefaultPingTimeout,
		},
		Status: StatusConfig{
			Bind:    DefaultStatusBind,
			Enabled: true,
		},
	}
}

// Load loads configuration from default locations with proper precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".remotia", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectConfigPath := filepath.Join(".", ".remotia", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REMOTIA_GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("REMOTIA_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("REMOTIA_REFRESH_URL"); v != "" {
		cfg.API.RefreshURL = v
	}
	if v := os.Getenv("REMOTIA_TOKEN_FILE"); v != "" {
		cfg.Auth.TokenFile = v
	}
	if v := os.Getenv("REMOTIA_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("REMOTIA_DEVICE_OWNER"); v != "" {
		if owner, err := strconv.ParseBool(v); err == nil {
			cfg.Device.Owner = owner
		}
	}
	if v := os.Getenv("REMOTIA_STATUS_BIND"); v != "" {
		cfg.Status.Bind = v
	}
	if v := os.Getenv("REMOTIA_PERMISSIONS_STRICT"); v != "" {
		if strict, err := strconv.ParseBool(v); err == nil {
			cfg.Permissions.Strict = strict
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("gateway.url must use ws or wss scheme, got %q", u.Scheme)
	}
	if c.API.BaseURL != "" {
		if _, err := url.Parse(c.API.BaseURL); err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
	}
	if c.API.RefreshURL == "" && c.API.BaseURL != "" {
		c.API.RefreshURL = c.API.BaseURL + "/auth/refresh"
	}
	if c.Gateway.ReconnectDelay <= 0 {
		c.Gateway.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Gateway.PingInterval <= 0 {
		c.Gateway.PingInterval = DefaultPingInterval
	}
	if c.Gateway.PingTimeout <= 0 {
		c.Gateway.PingTimeout = DefaultPingTimeout
	}
	if c.Status.Enabled {
		if _, _, err := net.SplitHostPort(c.Status.Bind); err != nil {
			return fmt.Errorf("status.bind: %w", err)
		}
	}
	return nil
}
