/**
 * @description
 * This is the main entry point for the fuel service. It loads configuration,
 * connects to PostgreSQL (applying migrations), RabbitMQ and the optional
 * Redis, wires the services, schedules the backlog report and serves HTTP
 * until SIGINT/SIGTERM.
 *
 * Run with -seed to load the demo drivers and refills before serving.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - github.com/redis/go-redis/v9: Distributed rate limiting.
 * - github.com/joho/godotenv: Loads .env files during local development.
 * - github.com/prometheus/client_golang: Metrics registry.
 * - internal/*, pkg/rabbitmq: The service packages.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/smfs18/desafio-backend/internal/anomaly"
	"github.com/smfs18/desafio-backend/internal/api"
	"github.com/smfs18/desafio-backend/internal/app"
	"github.com/smfs18/desafio-backend/internal/config"
	"github.com/smfs18/desafio-backend/internal/metrics"
	"github.com/smfs18/desafio-backend/internal/store"
	"github.com/smfs18/desafio-backend/pkg/rabbitmq"
)

func main() {
	seed := flag.Bool("seed", false, "load demo drivers and refills before serving")
	flag.Parse()

	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("database url must be configured", "component", "bootstrap", "env", "DATABASE_URL")
		os.Exit(1)
	}
	logger.Info("starting fuel service", "component", "bootstrap", "port", cfg.ServerPort)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database url parse failed", "component", "bootstrap", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("database connection failed", "component", "bootstrap", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connected", "component", "bootstrap")

	if cfg.RunMigrations {
		db := stdlib.OpenDBFromPool(dbpool)
		migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
		err := store.ApplyMigrations(migrateCtx, db)
		cancelMigrate()
		_ = db.Close()
		if err != nil {
			logger.Error("migrations failed", "component", "bootstrap", "error", err)
			os.Exit(1)
		}
	}

	var publisher rabbitmq.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		logger.Warn("rabbitmq url missing; using fallback publisher", "component", "bootstrap", "env", "RABBITMQ_URL")
		publisher = &rabbitmq.EventProducerFallback{}
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "component", "bootstrap", "error", err)
		publisher = &rabbitmq.EventProducerFallback{}
	} else {
		publisher = producer
		logger.Info("rabbitmq producer connected", "component", "bootstrap")
	}
	defer publisher.Close()

	ctx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()

	limiter, closeLimiter := newRateLimiter(ctx, cfg, logger)
	defer closeLimiter()

	m := metrics.New(prometheus.DefaultRegisterer)
	repository := store.NewPostgresRepository(dbpool)
	scorer := anomaly.NewScorer(cfg.AnomalyPriceThreshold)

	refillService := app.NewRefillService(repository, scorer, m, logger)
	driverService := app.NewDriverService(repository, publisher, cfg.EventsExchange, m, logger)
	reportJob := app.NewReportJob(repository, publisher, cfg.EventsExchange, m, logger)

	if *seed {
		seedCtx, cancelSeed := context.WithTimeout(context.Background(), time.Minute)
		_, _, err := app.NewSeeder(repository, driverService, refillService, logger).Seed(seedCtx)
		cancelSeed()
		if err != nil {
			logger.Error("seed failed", "component", "bootstrap", "error", err)
			os.Exit(1)
		}
	}

	var scheduler *app.Scheduler
	if cfg.ReportEnabled() {
		scheduler = app.NewScheduler(reportJob, cfg.ReportSchedule, logger)
		if err := scheduler.Start(); err != nil {
			logger.Error("report scheduler failed to start", "component", "bootstrap", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("refill backlog report disabled", "component", "bootstrap")
	}

	handlers := api.NewHandlers(refillService, driverService, reportJob, logger)
	router := api.NewRouter(handlers, api.RouterOptions{
		APIKey:       cfg.APIKey,
		ReviewerKeys: api.NewJWKSKeySource(cfg.ReviewerJWKSURL, nil),
		RateLimiter:  limiter,
		Gatherer:     prometheus.DefaultGatherer,
		Logger:       logger,
	})
	if cfg.ReviewerJWKSURL == "" {
		logger.Warn("reviewer jwks url missing; approve/reject require only the api key", "component", "bootstrap", "env", "REVIEWER_JWKS_URL")
	}

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "component", "http", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started", "component", "http")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "component", "http", "error", err)
	}
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("report job still running at shutdown", "component", "scheduler")
		}
	}

	logger.Info("shutdown complete", "component", "http")
}

// newRateLimiter prefers Redis when REDIS_URL is set and reachable, and
// falls back to an in-process limiter otherwise.
func newRateLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.RateLimiter, func()) {
	window := time.Minute
	local := func() (api.RateLimiter, func()) {
		l := api.NewLocalRateLimiter(cfg.RefillRateLimitPerMinute, window)
		l.StartJanitor(ctx, 2*time.Minute)
		return l, func() {}
	}

	if cfg.RedisURL == "" {
		logger.Info("redis url missing; using in-process rate limiter", "component", "bootstrap", "env", "REDIS_URL")
		return local()
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis url parse failed; using in-process rate limiter", "component", "bootstrap", "error", err)
		return local()
	}

	client := redis.NewClient(redisOptions)
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; using in-process rate limiter", "component", "bootstrap", "error", err)
		_ = client.Close()
		return local()
	}
	logger.Info("redis connected", "component", "bootstrap")

	limiter := api.NewRedisRateLimiter(client, cfg.RedisRateLimitPrefix, api.RefillRateLimitScope, cfg.RefillRateLimitPerMinute, window)
	return limiter, func() { _ = client.Close() }
}

func parseLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
