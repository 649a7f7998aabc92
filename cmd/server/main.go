package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/iptvsync/internal/app"
	"github.com/rpattn/iptvsync/internal/bus"
	"github.com/rpattn/iptvsync/internal/config"
	"github.com/rpattn/iptvsync/internal/events"
	"github.com/rpattn/iptvsync/internal/ingestion"
	"github.com/rpattn/iptvsync/internal/observability"
	"github.com/rpattn/iptvsync/internal/ops"
	"github.com/rpattn/iptvsync/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("ingestion service failed", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run wires the pipeline and blocks until ctx is cancelled. Every resource
// opened here is released before it returns.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	tp, shutdownTracing, err := observability.InitTracerProvider(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, os.Stdout, logger)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(shutdownCtx)
	}()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	conn := bus.NewConnection(cfg.Bus, logger)
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to message bus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	publisher := bus.NewPublisher(conn, cfg.Notifications.Publisher, logger)
	defer func() { _ = publisher.Close() }()

	metrics := observability.NewMetrics()
	service := ingestion.NewService(
		storage.NewOSFileStore(cfg.Pipeline.UploadsRoot),
		ingestion.NewProcessor(store.Accounts, logger),
		store.Logs,
		events.NewNotificationProducer(publisher, logger),
		logger,
		ingestion.Options{
			NotifyErrors: cfg.Pipeline.NotifyErrors,
			RecordLog:    cfg.Pipeline.RecordLog,
			Metrics:      metrics,
			Tracer:       tp.Tracer("iptvsync/ingestion"),
		},
	)

	subscriber := bus.NewSubscriber(conn, cfg.Uploads, service.HandleDelivery, logger)
	opsServer := ops.NewServer(cfg.Ops.Addr, map[string]ops.Check{
		"storage": store.Ping,
		"bus":     conn.Check,
	}, metrics.Handler(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return subscriber.Run(gctx) })
	g.Go(func() error { return opsServer.Run(gctx) })

	logger.Info("ingestion service started",
		zap.String("queue", cfg.Uploads.Queue),
		zap.String("notifications_exchange", cfg.Notifications.Publisher.Exchange),
	)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("ingestion service exited")
	return nil
}
