package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autogate/internal/auth/service"
	sessionstore "autogate/internal/auth/store/session"
	userstore "autogate/internal/auth/store/user"
	"autogate/internal/events"
	"autogate/internal/idp"
	"autogate/internal/platform/config"
	"autogate/internal/platform/httpserver"
	"autogate/internal/platform/logger"
	"autogate/internal/platform/metrics"
	"autogate/internal/platform/postgres"
	redisclient "autogate/internal/platform/redis"
	httptransport "autogate/internal/transport/http"
	"autogate/internal/worker"
)

// main wires the dependencies explicitly and keeps the server lifecycle
// small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	cache, err := redisclient.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	m := metrics.New()

	var sessionCache sessionstore.Cache
	if cache != nil {
		sessionCache = sessionstore.NewRedisCache(cache.Client)
	} else {
		log.Warn("no redis configured, session cache disabled")
	}
	sessions := sessionstore.NewDual(sessionstore.NewPostgres(db), sessionCache,
		sessionstore.WithLogger(log),
		sessionstore.WithMetrics(m),
	)
	users := userstore.NewPostgres(db)

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
	} else {
		log.Warn("no kafka brokers configured, auth events disabled")
		publisher = events.NopPublisher{}
	}

	idpClient := idp.NewClient(
		cfg.IdP.BaseURL, cfg.IdP.Realm, cfg.IdP.ClientID, cfg.IdP.ClientSecret,
		idp.WithHTTPClient(&http.Client{Timeout: cfg.IdP.Timeout}),
		idp.WithLogger(log),
	)
	verifier, err := idp.NewVerifier(ctx, idpClient.JWKSURL(), idpClient.Issuer(), log)
	if err != nil {
		log.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	auth := service.New(idpClient, verifier, sessions, users, publisher,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithSessionTTL(cfg.SessionTTL),
		service.WithUpstreamRevokeTimeout(cfg.UpstreamRevokeTimeout),
		service.WithSweepWorkers(cfg.SweepWorkers),
	)

	health := map[string]httptransport.HealthCheck{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if cache != nil {
		health["redis"] = cache.Health
	}

	handler := httptransport.NewHandler(auth, health, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	sweeper := worker.NewSweeper(auth, cfg.SweepInterval, worker.WithLogger(log))
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("sweeper stopped", "error", err)
		}
	}()

	go func() {
		log.Info("starting autogate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
