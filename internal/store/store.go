// Package store owns the shared SQLite database handle and the change hub
// that fans writes out to every connected viewer.
package store

import (
	"fmt"

	"github.com/gmsas95/mediremind/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the shared SQLite database. Domain stores migrate their own
// models on construction.
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Storage.SQLitePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
