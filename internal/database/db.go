package database

import (
	"fmt"
	"time"

	"larder/internal/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect
	_ "github.com/jinzhu/gorm/dialects/sqlite"   // SQLite dialect
)

var db *gorm.DB

// Open initializes the database connection. Driver is one of "sqlite3" or
// "postgres"; the DSN is a file path for SQLite and a connection string for
// PostgreSQL.
func Open(driver, dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	conn.DB().SetMaxIdleConns(10)
	conn.DB().SetMaxOpenConns(100)
	conn.DB().SetConnMaxLifetime(time.Hour)

	db = conn
	return conn, nil
}

// Migrate creates and configures all required database tables.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.Ingredient{},
		&models.StockTransaction{},
		&models.MenuItem{},
	).Error
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}

// CloseDB closes the database connection
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
