package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointments/internal/api"
	"github.com/hackgods/doctor-appointments/internal/appointment"
	"github.com/hackgods/doctor-appointments/internal/config"
	"github.com/hackgods/doctor-appointments/internal/db"
	"github.com/hackgods/doctor-appointments/internal/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err == nil {
		err = db.Migrate(pgCtx, pgPool)
	}
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	ledger := appointment.NewPgLedger(pgPool)
	directory, cacheDeps, closeCache := newDirectory(cfg, appointment.NewPgDirectory(pgPool), lg)
	defer closeCache()
	svc := appointment.NewService(ledger, directory, lg.Named("scheduling"))

	deps := append([]api.Dependency{{Name: "postgres", Pinger: pgPool, Critical: true}}, cacheDeps...)
	health := api.NewHealthHandler(deps, cfg.Env, version)

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Health:         health,
		JWTSecret:      cfg.JWTSecret,
		Logger:         lg.Named("http"),
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		CORSOrigins:    cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		lg.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			lg.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}

	lg.Info("shutting down api-server")
}
