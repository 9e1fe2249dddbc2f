package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
gateway:
  url: wss://gateway.example.com/cable
api:
  base_url: https://api.example.com
device:
  id: d1
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://gateway.example.com/cable", cfg.Gateway.URL)
	assert.Equal(t, DefaultReconnectDelay, cfg.Gateway.ReconnectDelay)
	assert.Equal(t, DefaultPingInterval, cfg.Gateway.PingInterval)
	assert.Equal(t, DefaultStatusBind, cfg.Status.Bind)
	assert.Equal(t, "https://api.example.com/auth/refresh", cfg.API.RefreshURL)
	assert.False(t, cfg.Permissions.Strict)
}

func TestLoadFromPathOverrides(t *testing.T) {
	path := writeConfig(t, `
gateway:
  url: ws://localhost:9000/cable
  reconnect_delay: 5s
permissions:
  strict: true
status:
  enabled: true
  bind: 127.0.0.1:9100
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Gateway.ReconnectDelay)
	assert.True(t, cfg.Permissions.Strict)
	assert.Equal(t, "127.0.0.1:9100", cfg.Status.Bind)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
gateway:
  url: ws://localhost:9000/cable
`)
	t.Setenv("REMOTIA_GATEWAY_URL", "wss://env.example.com/cable")
	t.Setenv("REMOTIA_DEVICE_ID", "env-device")
	t.Setenv("REMOTIA_DEVICE_OWNER", "true")
	t.Setenv("REMOTIA_PERMISSIONS_STRICT", "1")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://env.example.com/cable", cfg.Gateway.URL)
	assert.Equal(t, "env-device", cfg.Device.ID)
	assert.True(t, cfg.Device.Owner)
	assert.True(t, cfg.Permissions.Strict)
}

func TestValidateRejectsBadGatewayURL(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err, "missing gateway url")

	cfg.Gateway.URL = "https://not-a-websocket.example.com"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws or wss")
}

func TestValidateRejectsBadStatusBind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.URL = "ws://localhost/cable"
	cfg.Status.Bind = "no-port"
	require.Error(t, cfg.Validate())
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
