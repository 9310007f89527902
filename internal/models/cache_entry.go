package models

import (
	"time"

	"gorm.io/gorm"
)

// CacheEntry is one persisted key/value record with its bookkeeping fields.
type CacheEntry struct {
	BaseModel

	Key     string    `gorm:"size:256;not null;uniqueIndex" json:"key"`
	Value   string    `gorm:"type:text;not null" json:"value"`
	Count   int       `gorm:"not null;default:1" json:"count"`
	Expires time.Time `gorm:"not null;index" json:"expires"`
}

// TableName pins the table name independent of gorm naming strategy.
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// BeforeSave keeps timestamps in UTC and the counter positive.
func (e *CacheEntry) BeforeSave(tx *gorm.DB) error {
	e.Expires = e.Expires.UTC()
	if e.Count < 1 {
		e.Count = 1
	}
	return nil
}

// Live reports whether the entry has not yet expired at now.
func (e *CacheEntry) Live(now time.Time) bool {
	return e != nil && e.Expires.After(now)
}
