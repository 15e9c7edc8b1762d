package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmehra2102/storefront-reconciler/internal/app"
	"github.com/dmehra2102/storefront-reconciler/internal/config"
	orderhttp "github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/postgres"
	paymenthttp "github.com/dmehra2102/storefront-reconciler/internal/payment/infrastructure/http"
	paymentkafka "github.com/dmehra2102/storefront-reconciler/internal/payment/infrastructure/kafka"
	"github.com/dmehra2102/storefront-reconciler/pkg/idempotency"
	"github.com/dmehra2102/storefront-reconciler/pkg/logging"
	"github.com/dmehra2102/storefront-reconciler/pkg/outbox"
	"github.com/dmehra2102/storefront-reconciler/pkg/shutdown"
	"github.com/dmehra2102/storefront-reconciler/pkg/tracing"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogJSON)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "reconciler-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Migrate(ctx); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	// Order events leave through the outbox only when both Postgres and Kafka
	// are configured.
	if a.Pool != nil && cfg.KafkaAddr != "" {
		writer := orderkafka.NewWriter(cfg.Brokers())
		defer writer.Close()

		store := orderpg.NewOutboxStore(log, a.Pool)
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relay := outbox.NewRelay(log, store, dispatch, "reconciler-relay-"+hostname())
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	}

	if cfg.NotificationsTopic != "" {
		var idem paymentkafka.Deduper
		if a.Redis != nil {
			idem = idempotency.NewStore(a.Redis, 24*time.Hour)
		}
		reader := paymentkafka.NewReader(cfg.Brokers(), cfg.NotificationsTopic, cfg.ConsumerGroup)
		consumer := paymentkafka.NewConsumer(log, reader, a.Engine, idem)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("consumer stopped", "err", err)
				cancel()
			}
		}()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if a.Pool != nil {
			if err := a.Pool.Ping(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Mount("/orders", orderhttp.NewHandler(log, a.Service, a.Engine).Routes())
	r.Mount("/payments", paymenthttp.NewHandler(log, a.Engine, a.Syncer, a.Payments).Routes())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	if err := shutdown.HTTP(srv, 10*time.Second); err != nil {
		log.Error("http shutdown", "err", err)
	}
	log.Info("reconciler-service shutdown complete")
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return h
}
