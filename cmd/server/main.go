package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"mcaptracker/internal/config"
	"mcaptracker/internal/drivers/dexscreener"
	"mcaptracker/internal/handler"
	"mcaptracker/internal/model"
	"mcaptracker/internal/repository"
	"mcaptracker/internal/router"
	"mcaptracker/internal/scheduler"
	"mcaptracker/internal/service"
	"mcaptracker/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

func main() {
	cfg := config.Load()
	logger := newLogger()

	if cfg.DebugMode != "True" {
		gin.SetMode(gin.ReleaseMode)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("Failed to create database directory: %v", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before serving")
	flag.Parse()

	if *migrateFlag {
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatalf("Failed to get sql.DB: %v", err)
		}
		if err := goose.SetDialect("sqlite3"); err != nil {
			logger.Fatalf("Goose: failed to set dialect: %v", err)
		}
		logger.Info("Running database migrations...")
		if err := goose.Up(sqlDB, "migrations"); err != nil {
			logger.Fatalf("Goose migration failed: %v", err)
		}
	}

	tokenRepo := repository.NewGormTokenRepository(db)
	tokenService := service.NewTokenService(tokenRepo)
	tokenHandler := handler.NewTokenHandler(tokenService, logger)
	hub := ws.NewHub(logger)
	tokenHandler.Publish = func(v model.TokenView) {
		hub.Broadcast(v)
	}

	fetcher := dexscreener.NewClient(cfg.DexScreenerBaseURL, logger)
	refresher := scheduler.NewRefresher(tokenRepo, fetcher, logger, cfg.RefreshInterval, cfg.FetchDelay)
	refresher.OnUpdate = func(t model.Token) {
		hub.Broadcast(service.ToView(t))
	}

	engine := router.NewRouter(&router.Config{
		TokenHandler: tokenHandler,
		Hub:          hub,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: engine,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go refresher.Run(ctx)

	go func() {
		logger.WithField("port", cfg.ServerPort).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Received shutdown signal, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
}
