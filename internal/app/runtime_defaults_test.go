package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsRepairsBounds(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.MaxEntries = -1
	cfg.Cache.SweepSchedule = "not a schedule"

	repaired, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	require.Equal(t, 2, cfg.Cache.MaxEntries)
	require.Equal(t, 3600, cfg.Cache.MaxAge)
	require.Equal(t, 10, cfg.Cache.ValueLength)
	require.Equal(t, "@every 1m", cfg.Cache.SweepSchedule)
	require.Equal(t, map[string]bool{
		"cache.max_entries":    true,
		"cache.max_age":        true,
		"cache.value_length":   true,
		"cache.sweep_schedule": true,
	}, repaired)
	require.Empty(t, cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsGeneratesSecretWhenAuthEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWT.Enabled = true

	repaired, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Auth.JWT.Secret)
	require.Equal(t, map[string]bool{"auth.jwt.secret": true}, repaired)
}

func TestApplyRuntimeDefaultsPreservesValidValues(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWT.Enabled = true
	cfg.Auth.JWT.Secret = strings.Repeat("a", 10)

	repaired, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, repaired)
	require.Equal(t, 5, cfg.Cache.MaxEntries)
	require.Equal(t, strings.Repeat("a", 10), cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.ErrorContains(t, err, "config is nil")
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Cache.MaxEntries = 5
	cfg.Cache.MaxAge = 60
	cfg.Cache.ValueLength = 8
	cfg.Cache.SweepSchedule = "*/5 * * * *"
	return cfg
}
