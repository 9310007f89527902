package app

import (
	"strings"

	"github.com/charlesng35/kvcache/internal/auth"
)

// JWTServiceConfig maps the auth.jwt block onto auth.JWTConfig. A missing
// TTL falls back to auth.DefaultAccessTokenTTL.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	cfg := auth.JWTConfig{
		Secret:         strings.TrimSpace(c.JWT.Secret),
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		AccessTokenTTL: c.JWT.TTL,
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	return cfg
}
