package dbhelper

import (
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"closetapi/config"
	"closetapi/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupDB(cfg config.DatabaseConfig) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		panic(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Minute * 5)
	db.Logger = db.Logger.LogMode(logger.Warn)

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		log.Fatalf("failed to enable pgvector extension: %v", err)
	}
	MigrateAll(db)
	// ANN index for the cosine probe; plain AutoMigrate cannot express it
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_clothing_embedding ON clothings USING hnsw (embedding vector_cosine_ops)").Error; err != nil {
		log.Printf("failed to create embedding index: %v", err)
	}
	return db
}

func MigrateAll(db *gorm.DB) {
	Migrate(db, &models.UserAccount{})
	Migrate(db, &models.Clothing{})
	Migrate(db, &models.OutfitFeedback{})
	Migrate(db, &models.OutfitLog{})
}

// SetupTestDB opens a private in-memory sqlite database for one test.
// A single connection keeps the shared-cache database alive and serializes
// writers the way row locks would on postgres.
func SetupTestDB(t testing.TB) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	MigrateAll(db)
	t.Cleanup(func() {
		SetupCleaner(db)()
		sqlDB.Close()
	})
	return db
}
