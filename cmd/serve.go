package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/orderboard/config"
	"example.com/backstage/services/orderboard/internal/api"
	"example.com/backstage/services/orderboard/internal/cache"
	"example.com/backstage/services/orderboard/internal/ingest"
	"example.com/backstage/services/orderboard/internal/messaging"
	"example.com/backstage/services/orderboard/internal/metrics"
	"example.com/backstage/services/orderboard/internal/status"
	"example.com/backstage/services/orderboard/internal/store"
	"example.com/backstage/services/orderboard/internal/tracing"
	"example.com/backstage/services/orderboard/internal/upstream"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the order dashboard service",
	Long: `Load the order snapshot from the upstream API, subscribe to the
push queue for live orders, and serve board views over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.NewNoopTracer()
	}
	defer tracer.Close()

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize snapshot fallback cache
	snapshotCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}
	defer snapshotCache.Close()

	// Initialize the upstream client, store and core components
	upstreamClient := upstream.NewClient(cfg.Upstream, snapshotCache, metricsCollector, tracer)
	orderStore := store.New()
	coordinator := ingest.NewCoordinator(
		upstreamClient, orderStore, ingest.NewNormalizer(), metricsCollector, tracer)
	defer coordinator.Close()
	gateway := status.NewGateway(upstreamClient, orderStore, metricsCollector, tracer)

	// Initialize the Service Bus consumer
	azureBus, err := messaging.NewAzureClient(cfg.Azure, metricsCollector)
	if err != nil {
		return err
	}
	defer azureBus.Close()
	processor := messaging.NewProcessor(coordinator, metricsCollector)

	// Initialize the HTTP server
	server := api.NewServer(cfg, orderStore, gateway, metricsCollector, tracer)

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// One-shot snapshot load. A failure is reported but must not stop the
	// push subscription; the board still receives live orders.
	g.Go(func() error {
		if err := coordinator.LoadSnapshot(ctx); err != nil {
			log.Error().Err(err).Msg("Snapshot load failed, continuing with live feed only")
		}
		return nil
	})

	// Push subscription for the process lifetime.
	g.Go(func() error {
		return azureBus.Run(ctx, processor)
	})

	// HTTP server.
	g.Go(func() error {
		return server.Start()
	})

	// Shut the server down once the context is cancelled.
	g.Go(func() error {
		<-ctx.Done()
		coordinator.Close()
		gateway.Close()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service error")
		return err
	}

	log.Info().Msg("Orderboard shutting down gracefully")
	return nil
}
