package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/weibo-seed/internal/alias"
	"github.com/zhouzirui/weibo-seed/internal/config"
	"github.com/zhouzirui/weibo-seed/internal/logging"
	"github.com/zhouzirui/weibo-seed/internal/platform/otel"
)

var version = "0.1.0-dev"

const serviceName = "weibo-seeder"

// app carries what every subcommand needs after the root pre-run.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	shutdown func(context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "seeder",
		Short: "Seed a social simulation from a Weibo persona dataset",
		Long: `seeder registers one agent per dataset record on a running simulation
engine, rebuilds the recorded follow graph between them and replays their
recent posts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newBootstrapCmd(a),
		newProfilesCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func (a *app) init(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	shutdown, err := otel.Setup(ctx, otel.Options{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	a.cfg = cfg
	a.logger = logger
	a.shutdown = shutdown
	return nil
}

func (a *app) close() {
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil && a.logger != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// loadResolver builds the alias resolver, extending the built-in table with
// path when it is set.
func loadResolver(path string) (*alias.Resolver, error) {
	if path == "" {
		return alias.NewResolver(alias.DefaultTable()), nil
	}
	table, err := alias.LoadTable(path)
	if err != nil {
		return nil, err
	}
	return alias.NewResolver(table), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "seeder version %s\n", version)
			}
		},
	}
}
