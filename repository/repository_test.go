package repository

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"research-agent/models"
)

// newTestDB öffnet eine isolierte In-Memory-Datenbank pro Test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("cannot open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Dataset{}, &models.DatasetFile{}, &models.Paper{}, &models.Poster{}); err != nil {
		t.Fatalf("auto-migration failed: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func testLogger() *zap.Logger { return zap.NewNop() }
