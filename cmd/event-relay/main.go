package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointments/internal/appointment"
	"github.com/hackgods/doctor-appointments/internal/config"
	"github.com/hackgods/doctor-appointments/internal/db"
	"github.com/hackgods/doctor-appointments/internal/events"
	"github.com/hackgods/doctor-appointments/internal/logger"
	redisclient "github.com/hackgods/doctor-appointments/internal/redis"
)

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

	lg.Info("event-relay starting up",
		zap.String("env", cfg.Env),
		zap.String("broker", cfg.EventBroker),
		zap.Duration("interval", cfg.RelayInterval),
		zap.Int("batch_size", cfg.RelayBatchSize),
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

	publisher, err := newPublisher(cfg)
	if err != nil {
		lg.Fatal("broker connection error", zap.Error(err))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("error closing publisher", zap.Error(err))
		}
	}()
	lg.Info("connected to broker", zap.String("broker", cfg.EventBroker))

	relay := events.NewRelay(appointment.NewPgLedger(pgPool), publisher, cfg.RelayBatchSize, lg.Named("relay"))

	// Run once at startup
	runOnce(rootCtx, relay, lg)

	ticker := time.NewTicker(cfg.RelayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			lg.Info("shutdown signal received, stopping event relay")
			return
		case <-ticker.C:
			runOnce(rootCtx, relay, lg)
		}
	}
}

func newPublisher(cfg config.Config) (events.Publisher, error) {
	if cfg.EventBroker == config.BrokerRabbitMQ {
		return events.NewAMQPPublisher(cfg.RabbitMQURL)
	}

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	return &ownedRedisPublisher{RedisPublisher: events.NewRedisPublisher(rdb), close: rdb.Close}, nil
}

// ownedRedisPublisher closes the client the relay opened for it.
type ownedRedisPublisher struct {
	*events.RedisPublisher
	close func() error
}

func (p *ownedRedisPublisher) Close() error {
	return p.close()
}

func runOnce(ctx context.Context, relay *events.Relay, lg *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := relay.RunOnce(runCtx)
	if err != nil {
		lg.Error("relay run error", zap.Int("published", n), zap.Error(err))
		return
	}
	if n > 0 {
		lg.Info("relay run complete", zap.Int("published", n), zap.Duration("took", time.Since(start)))
	}
}
