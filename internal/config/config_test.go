package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model", "ARK_BASE_URL", "ARK_REGION",
	"ARK_TEMPERATURE", "ARK_TOP_P", "ARK_MAX_TOKENS",
	"WIDGET_REPLY_DELAY", "WIDGET_REPLY_TIMEOUT", "WIDGET_SUCCESS_DELAY", "WIDGET_SESSION_TTL", "WIDGET_CALENDAR_URL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CALLBACK_STREAM",
	"LOG_LEVEL", "LOG_DEVELOPMENT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.False(t, cfg.AI.Enabled())
	require.Nil(t, cfg.Widget.ReplyDelay)
	require.Equal(t, 30*time.Second, cfg.Widget.ReplyTimeout)
	require.Equal(t, 3*time.Second, cfg.Widget.SuccessDelay)
	require.Equal(t, 30*time.Minute, cfg.Widget.SessionTTL)
	require.Empty(t, cfg.Widget.CalendarURL)
	require.False(t, cfg.Delivery.RedisEnabled())
	require.Equal(t, "callback:requests", cfg.Delivery.Stream)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.Log.Development)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("Model", "doubao-lite")
	t.Setenv("ARK_MAX_TOKENS", "512")
	t.Setenv("WIDGET_REPLY_DELAY", "0s")
	t.Setenv("WIDGET_SUCCESS_DELAY", "5s")
	t.Setenv("WIDGET_CALENDAR_URL", " https://cal.example.com/martex ")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	require.True(t, cfg.AI.Enabled())
	require.Equal(t, 512, *cfg.AI.MaxTokens)
	require.NotNil(t, cfg.Widget.ReplyDelay)
	require.Zero(t, *cfg.Widget.ReplyDelay)
	require.Equal(t, 5*time.Second, cfg.Widget.SuccessDelay)
	require.Equal(t, "https://cal.example.com/martex", cfg.Widget.CalendarURL)
	require.True(t, cfg.Delivery.RedisEnabled())
	require.Equal(t, 2, cfg.Delivery.RedisDB)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.Development)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "80 80",
		"ARK_TEMPERATURE":    "warm",
		"WIDGET_REPLY_DELAY": "soon",
		"WIDGET_SESSION_TTL": "-1m",
		"REDIS_DB":           "-1",
		"LOG_LEVEL":          "loud",
		"LOG_DEVELOPMENT":    "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestAIConfigEnabledWithAccessKeys(t *testing.T) {
	cfg := AIConfig{Model: "m", AccessKey: "ak", SecretKey: "sk"}
	require.True(t, cfg.Enabled())
	cfg.SecretKey = ""
	require.False(t, cfg.Enabled())
}
