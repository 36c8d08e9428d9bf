package database

import (
	"fmt"
	"time"

	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/courses"
	"course-ledger/internal/domain/users"
	"course-ledger/internal/logging"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres. Production keeps gorm's logger at error level.
func Open(dsn string, production bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url not set")
	}

	gormLogger := logger.Default.LogMode(logger.Info)
	if production {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates every table the service reads or writes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// collaborators
		&users.User{},
		&courses.Course{},
		&courses.Enrollment{},

		// checkout
		&billing.Order{},
		&billing.Payment{},

		// finance
		&billing.LedgerEntry{},
		&billing.Payout{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	logging.New("database").Info("database migrated")
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
