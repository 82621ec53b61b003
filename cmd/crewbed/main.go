package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crewbe/internal/config"
	"crewbe/internal/daemon"
	"crewbe/internal/logging"
	"crewbe/internal/services/awscloud"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "crewbed",
		Short:         "Serve the crewbe upload and analysis API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	return cmd
}

func run(parent context.Context, configPath string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg, "crewbed.log")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	clients, err := awscloud.New(ctx, cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "aws clients unavailable", "aws_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check AWS credentials and storage.region"),
		)
		return err
	}

	d, err := daemon.New(cfg, clients.Storage, clients.Providers, logger, daemon.WithVersion(version))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	status := d.Status()
	logger.Info("crewbed ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("address", status.Address),
		logging.String("bucket", status.Bucket),
		logging.String("region", clients.Region),
	)

	<-ctx.Done()
	logger.Info("crewbed shutting down")
	return nil
}
