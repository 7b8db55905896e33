package database

import (
	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shortlink-api/internal/models"
)

var DB *gorm.DB

// InitDB opens the SQLite database at path and runs migrations
func InitDB(path string) {
	var err error

	// Open SQLite database file (will be created if it doesn't exist initially)
	// Using glebarez/sqlite which is a pure Go implementation (no CGO required)
	DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		log.Fatal("failed to connect to database", "err", err)
	}

	if err := RegisterQueryCounter(DB); err != nil {
		log.Fatal("failed to register query counter", "err", err)
	}

	// Auto-migrate the schema (it will create tables if they don't exist)
	err = DB.AutoMigrate(
		&models.User{},
		&models.ShortenedURL{},
	)

	if err != nil {
		log.Fatal("failed to migrate database", "err", err)
	}

	log.Info("database connected and migrated", "path", path)
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
