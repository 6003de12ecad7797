package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Varun5711/talentlens/internal/audit"
	"github.com/Varun5711/talentlens/internal/clickhouse"
	"github.com/Varun5711/talentlens/internal/config"
	"github.com/Varun5711/talentlens/internal/handlers"
	"github.com/Varun5711/talentlens/internal/lock"
	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	"github.com/Varun5711/talentlens/internal/redis"
)

const schemaLockKey = "lock:audit-worker:schema"

func main() {
	log := logger.New("audit-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	ch, err := clickhouse.NewClient(ctx, cfg.ClickHouse)
	if err != nil {
		log.Fatal("Failed to connect to ClickHouse: %v", err)
	}
	defer ch.Close()

	m := metrics.New()

	schemaLock := lock.NewDistributedLock(redisClient.Raw(), schemaLockKey, time.Minute)
	if err := schemaLock.WithLock(ctx, 30*time.Second, ch.EnsureSchema); err != nil {
		log.Fatal("Failed to prepare audit schema: %v", err)
	}

	consumer := audit.NewConsumer(redisClient.Raw(), ch, audit.ConsumerConfig{
		Stream:       cfg.Audit.StreamName,
		Group:        cfg.Audit.ConsumerGroup,
		Name:         cfg.Audit.ConsumerName,
		BatchSize:    cfg.Audit.BatchSize,
		BlockTime:    cfg.Audit.BlockTime,
		PollInterval: cfg.Audit.PollInterval,
		ClaimIdle:    cfg.Audit.ClaimIdle,
	}).WithLogger(log).WithMetrics(m)

	if err := consumer.EnsureGroup(ctx); err != nil {
		log.Fatal("%v", err)
	}

	m.TrackAuditPending(func() (int64, error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return consumer.Pending(ctx)
	})

	health := handlers.NewHealthHandler()
	health.Register("redis", redisClient.Ping)
	health.Register("clickhouse", ch.Ping)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", m.Handler())
	ops := &http.Server{
		Addr:              ":" + cfg.Audit.WorkerPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          log.StdLogger(),
	}
	go func() {
		log.Info("Health and metrics on :%s", cfg.Audit.WorkerPort)
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Ops server failed: %v", err)
		}
	}()

	log.Info("Consuming audit events from %s as %s/%s", cfg.Audit.StreamName, cfg.Audit.ConsumerGroup, cfg.Audit.ConsumerName)

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Run(ctx)
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownPeriod)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.Warn("Ops server shutdown: %v", err)
	}

	select {
	case <-done:
	case <-time.After(cfg.Audit.BlockTime + time.Second):
		log.Warn("Consumer did not stop in time")
	}
}
