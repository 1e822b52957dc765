// Package db opens the database, migrates the schema and loads seed data.
package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/medcrm/internal/config"
	"github.com/diewo77/medcrm/internal/logging"
	"github.com/diewo77/medcrm/internal/models"
)

// retryDelay is the pause between connection attempts.
var retryDelay = 2 * time.Second

// Open connects with the configured driver, retrying so that a postgres
// container still starting up is not fatal.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	log = logging.OrNop(log)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		log.Info("opening database", zap.String("driver", "sqlite"), zap.String("path", cfg.SQLitePath))
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		log.Info("opening database", zap.String("driver", "postgres"),
			zap.String("host", cfg.Host), zap.Int("port", cfg.Port),
			zap.String("dbname", cfg.DBName), zap.String("user", cfg.User))
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	var db *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed",
			zap.Int("attempt", i+1), zap.Int("attempts", attempts), zap.Error(err))
		if i+1 < attempts {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// Migrate runs AutoMigrate for all models.
// Call this at application startup or as part of a migration step.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.Tables()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
