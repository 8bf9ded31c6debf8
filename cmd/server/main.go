package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/diewo77/invoicegen/auth"
	"github.com/diewo77/invoicegen/internal/config"
	"github.com/diewo77/invoicegen/internal/db"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()
	log := config.NewLogger(cfg.Log)

	dbConn, err := db.Open(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if err := migrate(*cfg, dbConn, log); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	if *migrateOnlyFlag {
		log.Info("migrations completed")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := newBroker(ctx, cfg.Redis, log)
	app := NewApp(ctx, AppOptions{
		DB:            dbConn,
		Broker:        broker,
		Log:           log,
		SessionSecret: cfg.App.SessionSecret,
		DefaultLang:   cfg.App.DefaultLang,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	log.Info("server stopped gracefully")
}

// migrate applies the embedded SQL migrations on postgres when MIGRATIONS=1
// and falls back to gorm's AutoMigrate otherwise.
func migrate(cfg config.Config, conn *gorm.DB, log logrus.FieldLogger) error {
	if cfg.App.Migrations && !cfg.Database.IsSQLite() {
		log.WithField("database", cfg.Database.MaskedDSN()).Info("running SQL migrations")
		return db.RunSQLMigrations(cfg.Database.URL())
	}
	return db.Migrate(conn)
}

// newBroker uses Redis pub/sub when configured so every instance sees
// session changes; otherwise events stay in process.
func newBroker(ctx context.Context, cfg config.RedisConfig, log logrus.FieldLogger) auth.Broker {
	if cfg.Address == "" {
		return auth.NewMemoryBroker()
	}
	rdb, err := auth.ConnectRedis(ctx, cfg.Address, cfg.Password, cfg.DB)
	if err != nil {
		log.WithError(err).WithField("address", cfg.Address).Warn("redis unavailable, using in-process session events")
		return auth.NewMemoryBroker()
	}
	log.WithField("address", cfg.Address).Info("session events via redis")
	return auth.NewRedisBroker(rdb, log)
}

// staticDir finds static/ from the working directory or its parents.
func staticDir() string {
	for _, c := range []string{"static", "../static", "../../static"} {
		if fi, err := os.Stat(c); err == nil && fi.IsDir() {
			return filepath.Clean(c)
		}
	}
	return "static"
}
