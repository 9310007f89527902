package database

import (
	"time"

	"gorm.io/gorm"
)

type poolLimits struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

var (
	// sqlite serialises writers; one connection avoids "database is locked"
	// under concurrent upserts.
	sqlitePool  = poolLimits{maxOpen: 1, maxIdle: 1}
	networkPool = poolLimits{maxOpen: 16, maxIdle: 4, maxLifetime: 30 * time.Minute}
)

func tunePool(db *gorm.DB, limits poolLimits) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(limits.maxOpen)
	sqlDB.SetMaxIdleConns(limits.maxIdle)
	if limits.maxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(limits.maxLifetime)
	}
	return nil
}
