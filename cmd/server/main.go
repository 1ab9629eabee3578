package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gilrm92/trading-spot/internal/adapter/eventpublisher"
	"github.com/gilrm92/trading-spot/internal/adapter/httpserver"
	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	"github.com/gilrm92/trading-spot/internal/adapter/postgres"
	"github.com/gilrm92/trading-spot/internal/adapter/redis"
	"github.com/gilrm92/trading-spot/internal/adapter/torn"
	"github.com/gilrm92/trading-spot/internal/adapter/websocket"
	"github.com/gilrm92/trading-spot/internal/app"
	"github.com/gilrm92/trading-spot/internal/platform/config"
	"github.com/gilrm92/trading-spot/internal/platform/logging"
	"github.com/gilrm92/trading-spot/internal/platform/version"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const (
	localCatalogTTL = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	maxLiveClients  = 1000
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, m *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, m)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func healthChecks(pool *pgxpool.Pool, redisClient *goredis.Client) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		{Name: "postgres", Check: pool.Ping},
		{Name: "schema", Check: func(ctx context.Context) error { return postgres.CheckSchema(ctx, pool) }},
	}
}

func runGracefulShutdown(srv *httpserver.Server, hub *websocket.Hub, stopBackground context.CancelFunc, background *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBackground()
		background.Wait()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	registry := metrics.NewRegistry()
	m := metrics.NewSet(registry)

	pool := setupDB(cfg, m.DB)
	defer pool.Close()

	redisClient := setupRedis(cfg, m.Redis)
	defer func() { _ = redisClient.Close() }()

	itemRepo := postgres.NewItemRepo(pool)
	reactionRepo := postgres.NewReactionRepo(pool)

	catalogCache := redis.NewCatalogCache(redisClient, cfg.CatalogCacheTTL, localCatalogTTL, m.Cache, clock)
	loginLimiter := redis.NewLoginLimiter(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow)
	syncLock := redis.NewSyncLock(redisClient)
	eventBus := redis.NewEventBus(redisClient)

	tornClient := torn.NewClient(cfg.TornAPIBaseURL, cfg.TornRequestTimeout, m.Upstream, clock)

	appSvc := app.NewService(itemRepo, reactionRepo, catalogCache, eventBus, m.Reactions, clock)
	syncJob := app.NewSyncJob(tornClient, itemRepo, syncLock, catalogCache, eventBus, m.Sync, clock, cfg.SyncLockTTL)
	authenticator := app.NewAuthenticator(tornClient, loginLimiter, cfg.AdminIDs(), m.Auth)

	hub := websocket.NewHub(maxLiveClients, m.WebSocket, clock)

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	var background sync.WaitGroup

	relay := eventpublisher.New(hub, catalogCache)
	background.Go(func() { relay.Run(backgroundCtx, eventBus) })

	if cfg.ScheduledSyncEnabled() {
		scheduler, err := app.NewSyncScheduler(syncJob, cfg.SyncSchedule, cfg.SyncAPIKey, clock)
		if err != nil {
			slog.Error("Failed to create sync scheduler", "error", err)
			os.Exit(1)
		}
		background.Go(func() { scheduler.Run(backgroundCtx) })
	} else {
		slog.Info("Scheduled sync disabled")
	}

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Catalog:        appSvc,
		Sync:           syncJob,
		Auth:           authenticator,
		Hub:            hub,
		Metrics:        m.HTTP,
		MetricsHandler: metrics.Handler(registry),
		HealthChecks:   healthChecks(pool, redisClient),
		Clock:          clock,
	})

	done := runGracefulShutdown(srv, hub, stopBackground, &background)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
