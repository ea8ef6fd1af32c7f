package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SOAP_SERVER_ADDR", "https://soap.example.org/arith")
	t.Setenv("SOAP_SERVER_HTTPS_SECURE", "true")
	t.Setenv("SOAP_SERVER_LIMIT_IP", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.True(t, cfg.Policy().RequireSecure)
	assert.Empty(t, cfg.Policy().AllowedAddr)
	assert.False(t, cfg.TLSEnabled())
	assert.Equal(t, 1, cfg.Burst())

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("SOAP_SERVER_ADDR", "https://soap.example.org/arith")
	t.Setenv("SOAP_SERVER_HTTPS_SECURE", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
	assert.Contains(t, err.Error(), "SOAP_SERVER_LIMIT_IP")
}

func TestLoadOptional(t *testing.T) {
	setRequired(t)
	t.Setenv("SOAP_SERVER_LIMIT_IP", "10.0.0.1")
	t.Setenv("SOAP_ETCD_ENDPOINTS", "etcd-1:2379,etcd-2:2379")
	t.Setenv("SOAP_RATE_LIMIT", "50")
	t.Setenv("SOAP_RATE_BURST", "5")
	t.Setenv("SOAP_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Policy().AllowedAddr)
	assert.Equal(t, []string{"etcd-1:2379", "etcd-2:2379"}, cfg.EtcdEndpoints)
	assert.Equal(t, 5, cfg.Burst())
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"relative address", "SOAP_SERVER_ADDR", "/arith"},
		{"bad limit ip", "SOAP_SERVER_LIMIT_IP", "not-an-ip"},
		{"cert without key", "SOAP_TLS_CERT_FILE", "server.crt"},
		{"bad log level", "SOAP_LOG_LEVEL", "loud"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}
