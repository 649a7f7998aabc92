package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/iptvsync/internal/app"
	"github.com/rpattn/iptvsync/internal/config"
	"github.com/rpattn/iptvsync/internal/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries what every subcommand needs once the root has run.
type cli struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func (c *cli) openStore(ctx context.Context) (*app.Store, error) {
	return app.OpenStore(ctx, c.cfg, c.logger)
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "iptvctl",
		Short:         "Inspect and drive the IPTV account ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			logger, err := observability.NewLogger(cfg.Log.Level, "console")
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", ".", "directory containing config.yaml")

	root.AddCommand(
		newAccountsCmd(c),
		newLogsCmd(c),
		newSampleCmd(c),
		newPublishCmd(c),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
