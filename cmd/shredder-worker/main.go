package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harrowlabs/shredder/internal/badrows"
	"github.com/harrowlabs/shredder/internal/iglu"
	"github.com/harrowlabs/shredder/internal/ops"
	"github.com/harrowlabs/shredder/internal/shred"
	"github.com/harrowlabs/shredder/internal/warehouse"
	"github.com/harrowlabs/shredder/internal/worker"
	"github.com/harrowlabs/shredder/pkg/bigquery"
	"github.com/harrowlabs/shredder/pkg/config"
	"github.com/harrowlabs/shredder/pkg/idempotency"
	"github.com/harrowlabs/shredder/pkg/logger"
	"github.com/harrowlabs/shredder/pkg/metrics"
	"github.com/harrowlabs/shredder/pkg/pubsub"
	"github.com/harrowlabs/shredder/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "shredder-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "shredder-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery client", err)
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "failed to close bigquery client", err)
		}
	}()

	subscription := pubsubClient.EnrichedSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "enriched subscription", errors.New("subscription not configured"))
	}

	httpResolver, err := iglu.NewHTTPResolver(cfg.Iglu.RegistryURLs, cfg.Iglu.ResolveTimeout)
	requireResource(ctx, logg, "iglu resolver", err)
	resolver, err := iglu.NewCachedResolver(httpResolver)
	requireResource(ctx, logg, "iglu schema cache", err)

	validator, err := shred.NewValidator(resolver)
	requireResource(ctx, logg, "schema validator", err)

	shredder, err := shred.New(validator)
	requireResource(ctx, logg, "shredder", err)

	writer, err := warehouse.New(bqClient, warehouse.RetryPolicy{
		MaxAttempts:    cfg.Writer.MaxAttempts,
		InitialBackoff: cfg.Writer.InitialBackoff,
		MaximumBackoff: cfg.Writer.MaximumBackoff,
	})
	requireResource(ctx, logg, "warehouse writer", err)

	badRowsSink, err := badrows.NewPubSubSink(pubsubClient.BadRowsPublisher())
	requireResource(ctx, logg, "bad rows sink", err)
	failures, err := badrows.NewPublisher(badRowsSink, logg)
	requireResource(ctx, logg, "bad rows publisher", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	service, err := worker.NewService(subscription, shredder, writer, failures, manager, pipelineMetrics, logg)
	requireResource(ctx, logg, "shredder worker service", err)

	opsServer := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: ops.NewHandler(cfg, logg, registry, map[string]ops.Pinger{
			"redis":    redisClient,
			"pubsub":   pubsubClient,
			"bigquery": bqClient,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server failed", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithField(runCtx, "env", cfg.App.Env)
	logg.Info(runCtx, "shredder worker ready")

	err = service.Run(runCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := opsServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logg.Error(ctx, "ops server shutdown failed", shutdownErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "shredder worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
