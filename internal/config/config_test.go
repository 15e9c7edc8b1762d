package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, LockLocal, cfg.LockBackend)
	assert.Equal(t, GatewayMock, cfg.GatewayMode)
	assert.Equal(t, "BRL", cfg.DefaultCurrency)

	ship, err := cfg.Shipping()
	require.NoError(t, err)
	assert.Equal(t, "15", ship.String())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9000"
pg_url: "postgres://localhost/db"
kafka_addr: "k1:9092, k2:9092"
status_aliases: "authorized=approved"
`), 0o600))
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, LockPostgres, cfg.LockBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())

	aliases, err := cfg.Aliases()
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Status{"authorized": domain.StatusApproved}, aliases)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORE_BACKEND": "postgres"},
		"redis lock no addr":   {"LOCK_BACKEND": "redis"},
		"live gateway":         {"GATEWAY_MODE": "live"},
		"bad shipping":         {"SHIPPING_COST": "cheap"},
		"bad alias":            {"STATUS_ALIASES": "authorized=paid"},
		"topic without kafka":  {"NOTIFICATIONS_TOPIC": "payments"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
