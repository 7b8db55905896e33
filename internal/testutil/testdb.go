package testutil

import (
	"shortlink-api/internal/database"
	"shortlink-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewInMemoryDB creates an in-memory SQLite DB, runs migrations, and wires
// the query counter callbacks so tests see the same DB behavior as the
// server.
func NewInMemoryDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.User{}, &models.ShortenedURL{}); err != nil {
		return nil, err
	}
	if err := database.RegisterQueryCounter(db); err != nil {
		return nil, err
	}
	return db, nil
}
