package database

import (
	"fmt"
	"os"
	"time"

	pkgLogger "github.com/sjperalta/transfer-ledger/pkg/logger"

	"github.com/glebarez/sqlite"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database
func Connect(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenSQLite opens a single-connection SQLite database. It backs tests and
// the ledgerctl local mode; dsn may be ":memory:" or a file path.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Migrate creates or updates the ledger schema
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.LedgerTransaction{},
		&models.CompanyAccount{},
		&models.SystemDriver{},
		&models.ManualDriver{},
		&models.ReservationRecord{},
		&models.LedgerAnomaly{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func gormConfig() *gorm.Config {
	// Configure GORM logger
	logLevel := logger.Silent
	if os.Getenv("ENVIRONMENT") != "production" {
		logLevel = logger.Warn
	}

	return &gorm.Config{
		Logger:                 pkgLogger.NewGormLogger(logLevel, 200*time.Millisecond),
		SkipDefaultTransaction: true, // writes that need atomicity use a unit of work
		TranslateError:         true, // unique violations surface as gorm.ErrDuplicatedKey
	}
}
