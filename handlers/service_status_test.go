package handlers

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/config"
	"github.com/Lupao-eth/triptask-backend/models"
)

func newStatusDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("underlying db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestFlipServiceStatusVersionPredicate(t *testing.T) {
	db := newStatusDB(t)

	// The seeded row starts at version 1.
	if err := flipServiceStatus(db, 1, false); err != nil {
		t.Fatalf("flipServiceStatus(v1) error = %v", err)
	}
	var status models.ServiceStatus
	if err := db.First(&status, 1).Error; err != nil {
		t.Fatalf("reload status: %v", err)
	}
	if status.IsOnline || status.Version != 2 {
		t.Fatalf("status = online=%v version=%d, want offline at version 2", status.IsOnline, status.Version)
	}

	// A writer still holding version 1 lost the race.
	if err := flipServiceStatus(db, 1, true); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale flipServiceStatus() error = %v, want Conflict", err)
	}
	if err := db.First(&status, 1).Error; err != nil {
		t.Fatalf("reload status: %v", err)
	}
	if status.IsOnline || status.Version != 2 {
		t.Fatalf("stale write changed the row: online=%v version=%d", status.IsOnline, status.Version)
	}

	// The current version still writes.
	if err := flipServiceStatus(db, 2, true); err != nil {
		t.Fatalf("flipServiceStatus(v2) error = %v", err)
	}
	if err := db.First(&status, 1).Error; err != nil {
		t.Fatalf("reload status: %v", err)
	}
	if !status.IsOnline || status.Version != 3 {
		t.Fatalf("status = online=%v version=%d, want online at version 3", status.IsOnline, status.Version)
	}
}
