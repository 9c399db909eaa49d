package internal

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/reelscout_test")
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("KV_BACKEND", "memory")
	t.Setenv("SCRAPER_PROVIDER", "mock")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("METRICS_ALLOWED_NETS", "")
	t.Setenv("LOCKOUT_MAX_ATTEMPTS", "")
	t.Setenv("LOCKOUT_DURATION", "")
}

func TestNewConfig_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.LockoutMaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.LockoutDuration)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.False(t, cfg.BillingEnabled())
	assert.Empty(t, cfg.CORSOrigins)
	assert.Empty(t, cfg.MetricsAllowedNets)
}

func TestNewConfig_ParsesLists(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://www.example.com ,")
	t.Setenv("STRIPE_PRO_MONTHLY_PRICE_ID", "price_pro_m")
	t.Setenv("LOCKOUT_DURATION", "90s")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.example.com", "https://www.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "price_pro_m", cfg.Prices.ProMonthlyPriceID)
	assert.Equal(t, 90*time.Second, cfg.LockoutDuration)
}

func TestNewConfig_MetricsAllowedNets(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("METRICS_ALLOWED_NETS", "10.1.2.3/8, 127.0.0.1 ,fd00::/8")

	cfg, err := NewConfig()
	require.NoError(t, err)

	require.Len(t, cfg.MetricsAllowedNets, 3)
	assert.Equal(t, "10.0.0.0/8", cfg.MetricsAllowedNets[0].String())
	assert.Equal(t, "127.0.0.1/32", cfg.MetricsAllowedNets[1].String())
	assert.Equal(t, "fd00::/8", cfg.MetricsAllowedNets[2].String())
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{"DATABASE_URL": ""}},
		{"unknown storage provider", map[string]string{"STORAGE_PROVIDER": "s3"}},
		{"r2 without account", map[string]string{"STORAGE_PROVIDER": "r2", "R2_ACCOUNT_ID": ""}},
		{"redis without url", map[string]string{"KV_BACKEND": "redis", "REDIS_URL": ""}},
		{"unknown kv backend", map[string]string{"KV_BACKEND": "memcached"}},
		{"apify without token", map[string]string{"SCRAPER_PROVIDER": "apify", "APIFY_TOKEN": ""}},
		{"unknown scraper", map[string]string{"SCRAPER_PROVIDER": "scrapy"}},
		{"zero lockout attempts", map[string]string{"LOCKOUT_MAX_ATTEMPTS": "0"}},
		{"sub-second lockout", map[string]string{"LOCKOUT_DURATION": "500ms"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"stripe without webhook secret", map[string]string{"STRIPE_SECRET_KEY": "sk_test_x"}},
		{"bad metrics net", map[string]string{"METRICS_ALLOWED_NETS": "10.0.0.0/33"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger_JSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "INFO")

	logger.Debug("hidden")
	logger.Info("search completed", "user_id", "u1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "search completed", rec["msg"])
	assert.Equal(t, "reelscout", rec["service"])
	assert.Equal(t, "u1", rec["user_id"])
}
