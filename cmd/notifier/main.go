package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/iptvsync/internal/bus"
	"github.com/rpattn/iptvsync/internal/config"
	"github.com/rpattn/iptvsync/internal/notify"
	"github.com/rpattn/iptvsync/internal/observability"
	"github.com/rpattn/iptvsync/internal/ops"

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
		logger.Error("notification service failed", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	sender, err := notify.NewSender(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("failed to create email sender: %w", err)
	}

	metrics := observability.NewMetrics()
	handler := notify.NewHandler(cfg.Email, sender, metrics, logger)
	handler.CheckSender(ctx)

	conn := bus.NewConnection(cfg.Bus, logger)
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to message bus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	subscriber := bus.NewSubscriber(conn, cfg.Notifications.Consumer, handler.HandleDelivery, logger)
	opsServer := ops.NewServer(cfg.Ops.Addr, map[string]ops.Check{
		"bus": conn.Check,
	}, metrics.Handler(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return subscriber.Run(gctx) })
	g.Go(func() error { return opsServer.Run(gctx) })

	logger.Info("notification service started",
		zap.String("queue", cfg.Notifications.Consumer.Queue),
		zap.Bool("email_enabled", cfg.Email.Enabled),
	)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("notification service exited")
	return nil
}
