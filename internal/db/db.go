package db

import (
	"fmt"
	"time"

	"github.com/diewo77/invoicegen/internal/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// GormConfig is the gorm configuration shared by the server and tests.
// TranslateError maps driver unique violations to gorm.ErrDuplicatedKey.
func GormConfig(debug bool) *gorm.Config {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(level), TranslateError: true}
}

// Open connects with the configured driver, retrying while postgres starts up.
func Open(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	dialector := postgres.Open(cfg.DSN())
	if cfg.IsSQLite() {
		dialector = sqlite.Open(cfg.SQLitePath)
	}
	log.WithField("dsn", cfg.MaskedDSN()).Info("connecting to database")

	var conn *gorm.DB
	var err error
	for i := 0; i < connectAttempts; i++ {
		conn, err = gorm.Open(dialector, GormConfig(cfg.Debug))
		if err == nil {
			break
		}
		log.WithError(err).WithField("attempt", i+1).Warn("database not ready, retrying")
		time.Sleep(connectBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	return conn, nil
}
