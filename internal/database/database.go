package database

import (
	"fmt"
	"time"

	"medical-record-versioning/internal/config"
	"medical-record-versioning/internal/domain/entities"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize opens the PostgreSQL connection through the lib/pq driver,
// tunes the pool and runs the migrations.
func Initialize(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector := postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        cfg.PostgresDSN(),
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger(cfg.LogQueries),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := Migrate(db, log); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate creates or updates every table owned by the service.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("Running database migrations")

	return db.AutoMigrate(
		&entities.Patient{},
		&entities.Doctor{},
		&entities.MedicalRecord{},
		&entities.RecordVersion{},
		&entities.AuditEntry{},
	)
}

func gormLogger(logQueries bool) logger.Interface {
	if logQueries {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Warn)
}
