package app

import (
	"strings"

	"github.com/charlesng35/kvcache/internal/database"
)

// ConnectionConfig converts DatabaseConfig into database.Config, picking the
// credentials block that matches the driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	cfg := database.Config{
		Driver: driver,
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	var creds DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		creds = c.Postgres
	case "mysql":
		creds = c.MySQL
	default:
		return cfg
	}

	cfg.Host = strings.TrimSpace(creds.Host)
	cfg.Port = creds.Port
	cfg.Name = strings.TrimSpace(creds.Database)
	cfg.User = creds.Username
	cfg.Password = creds.Password
	return cfg
}
