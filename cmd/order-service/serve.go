package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/dmehra2102/checkout-saga/internal/order/application"
	orderhttp "github.com/dmehra2102/checkout-saga/internal/order/infrastructure/http"
	"github.com/dmehra2102/checkout-saga/internal/order/infrastructure/inventory"
	"github.com/dmehra2102/checkout-saga/internal/order/infrastructure/memory"
	"github.com/dmehra2102/checkout-saga/internal/order/infrastructure/payment"
	orderpg "github.com/dmehra2102/checkout-saga/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/checkout-saga/pkg/auth"
	"github.com/dmehra2102/checkout-saga/pkg/config"
	"github.com/dmehra2102/checkout-saga/pkg/database"
	"github.com/dmehra2102/checkout-saga/pkg/logging"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/dmehra2102/checkout-saga/pkg/shutdown"
	"github.com/dmehra2102/checkout-saga/pkg/tracing"
	"github.com/dmehra2102/checkout-saga/pkg/workerpool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "order-service"

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, cancel := shutdown.WithSignals(cmd.Context())
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(serviceName, cfg.LogLevel)

	tp, err := tracing.Init(ctx, serviceName, cfg.TracingURL, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return err
	}

	m := metrics.New("order")
	httpClient := tracing.HTTPClient()
	inv := inventory.NewClient(cfg.Inventory.BaseURL, httpClient, cfg.Inventory.Timeout, cfg.Inventory.ServiceToken, m)
	pay := payment.NewClient(cfg.Payment.BaseURL, httpClient, cfg.Payment.Timeout, m)

	g, ctx := errgroup.WithContext(ctx)

	var repo application.OrderRepository
	switch cfg.Store.Driver {
	case "memory":
		log.Warn("using in-memory order store, data is lost on restart")
		repo = memory.NewRepository()
	default:
		pool, err := database.Connect(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = orderpg.NewRepository(log, pool)

		if len(cfg.Kafka.Brokers) == 0 {
			log.Warn("kafka brokers not configured, outbox relay disabled")
			break
		}
		writer := outbox.NewKafkaWriter(cfg.Kafka.Brokers)
		defer func() { _ = writer.Close() }()

		relay := outbox.NewRelay(log, outbox.NewPostgresStore(log, pool),
			outbox.NewDispatcher(log, writer, cfg.Kafka.Topic), relayID()).
			WithInterval(cfg.RelayInterval)
		g.Go(func() error { return relay.Run(ctx) })
	}

	workers := workerpool.New(cfg.Workers)
	svc := application.NewService(log, repo, inv, pay, workers, m)
	handler := orderhttp.NewHandler(log, svc, verifier, cfg.InternalSecret, m)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      otelhttp.NewHandler(handler.Routes(), serviceName),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	g.Go(func() error { return shutdown.Serve(ctx, log, srv, cfg.HTTP.ShutdownTimeout) })

	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if drainErr := workers.Drain(drainCtx); drainErr != nil {
		log.Warn("worker pool did not drain", "err", drainErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("order-service stopped with error", "err", err)
		return err
	}
	log.Info("order-service shutdown complete")
	return nil
}

func relayID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}
	return host + "-order-relay"
}
