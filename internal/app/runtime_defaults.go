package app

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/charlesng35/kvcache/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults repairs unusable cache bounds and populates secrets the
// enabled features need. It returns the keys it touched so callers can log the
// event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	repaired := make(map[string]bool)

	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = defaultMaxEntries
		repaired["cache.max_entries"] = true
	}
	if cfg.Cache.MaxAge <= 0 {
		cfg.Cache.MaxAge = defaultMaxAgeSeconds
		repaired["cache.max_age"] = true
	}
	if cfg.Cache.ValueLength <= 0 {
		cfg.Cache.ValueLength = defaultValueLength
		repaired["cache.value_length"] = true
	}
	if !validSchedule(cfg.Cache.SweepSchedule) {
		cfg.Cache.SweepSchedule = defaultSweepSchedule
		repaired["cache.sweep_schedule"] = true
	}

	if cfg.Auth.JWT.Enabled && strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		repaired["auth.jwt.secret"] = true
	}

	return repaired, nil
}

func validSchedule(spec string) bool {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return false
	}
	_, err := cron.ParseStandard(spec)
	return err == nil
}
