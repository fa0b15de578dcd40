package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"fundforge/internal/audit"
	"fundforge/internal/campaign/handler"
	"fundforge/internal/campaign/metrics"
	"fundforge/internal/campaign/projection"
	"fundforge/internal/campaign/service"
	"fundforge/internal/campaign/store"
	"fundforge/internal/platform/config"
	"fundforge/internal/platform/httpserver"
	"fundforge/internal/platform/logger"
	"fundforge/internal/platform/middleware"
	platformredis "fundforge/internal/platform/redis"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory for development.
	var (
		campaignStore service.CampaignStore
		reader        projection.CampaignReader
		auditStore    audit.Store
	)
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("pgx", cfg.Postgres.URL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}

		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ensure campaign schema", "error", err)
			os.Exit(1)
		}
		auditPg := audit.NewPostgresStore(db)
		if err := auditPg.EnsureSchema(ctx); err != nil {
			log.Error("ensure audit schema", "error", err)
			os.Exit(1)
		}
		campaignStore, reader, auditStore = pg, pg, auditPg
		log.Info("using postgres store")
	} else {
		mem := store.NewInMemory()
		campaignStore, reader, auditStore = mem, mem, audit.NewMemoryStore()
		log.Info("using in-memory store")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: services emit through a channel worker; Kafka is an
	// optional extra sink.
	inbox := make(chan audit.Event, 256)
	worker := audit.NewWorker(auditStore, inbox, log)
	sinks := audit.Fanout{audit.NewChannelPublisher(inbox)}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("audit events mirrored to kafka", "topic", cfg.Kafka.Topic)
	}

	var cache projection.Cache
	if redisClient != nil {
		cache = projection.NewRedisCache(redisClient, cfg.Redis.ProjectionTTL, log)
	}
	projector := projection.New(reader, cache, log)

	svc := service.New(campaignStore,
		service.WithLogger(log),
		service.WithAuditPublisher(sinks),
		service.WithAuditTrail(audit.NewPublisher(auditStore)),
		service.WithMetrics(metrics.New()),
		service.WithProjectionInvalidator(projector),
	)

	jwtService := middleware.NewJWTService(cfg.Server.JWTSigningKey)
	requireAuth := middleware.RequireAuth(jwtService, log)
	requireAdmin := middleware.RequireAdminToken(cfg.Server.AdminToken, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RequestTime,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.ContentTypeJSON,
	)
	if redisClient != nil {
		router.Use(middleware.Idempotency(redisClient, cfg.Redis.IdempotencyTTL, log))
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	handler.New(svc, projector, log).Register(router, requireAuth, requireAdmin)

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting fundforge", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
