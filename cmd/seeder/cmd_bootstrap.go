package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/weibo-seed/internal/config"
	"github.com/zhouzirui/weibo-seed/internal/dataset"
	"github.com/zhouzirui/weibo-seed/internal/engine"
	"github.com/zhouzirui/weibo-seed/internal/engine/wschannel"
	"github.com/zhouzirui/weibo-seed/internal/service/bootstrap"
	"github.com/zhouzirui/weibo-seed/internal/store"
)

func newBootstrapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Register agents, rebuild follows and replay posts on the engine",
		Long: `Loads the dataset and drives the engine through three phases:
  1. Registration: one sign-up per valid record
  2. Follow graph: recorded follows between registered agents
  3. Content replay: up to --max-posts cleaned posts per agent

With --dry-run the phases run against an in-process engine instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBootstrap(cmd)
		},
	}

	cmd.Flags().String("dataset", "", "Dataset path or URL (default $SEED_DATASET)")
	cmd.Flags().String("engine-url", "", "Engine websocket URL (default $SEED_ENGINE_URL)")
	cmd.Flags().Bool("dry-run", false, "Run against an in-process engine")
	cmd.Flags().Int("max-posts", 0, "Maximum posts replayed per agent")
	cmd.Flags().Int("concurrency", 0, "Concurrent engine calls in the registration and replay phases")
	cmd.Flags().Duration("call-timeout", 0, "Timeout of a single engine call")
	cmd.Flags().String("failure-policy", "", "continue or abort on failed follow/post calls")
	cmd.Flags().String("duplicate-policy", "", "last-wins, first-wins or reject for repeated dataset ids")
	cmd.Flags().String("alias-file", "", "YAML file extending the alias table")
	cmd.Flags().String("db", "", "SQLite file the run is saved to")
	return cmd
}

func (a *app) runBootstrap(cmd *cobra.Command) error {
	ctx := cmd.Context()
	seed := a.cfg.Seed
	if err := applySeedFlags(cmd, &seed); err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if seed.DatasetPath == "" {
		return errors.New("dataset path is required (--dataset or SEED_DATASET)")
	}
	if !dryRun && seed.EngineURL == "" {
		return errors.New("engine url is required (--engine-url or SEED_ENGINE_URL), or use --dry-run")
	}

	resolver, err := loadResolver(seed.AliasFile)
	if err != nil {
		return err
	}

	ds, err := dataset.NewLoader(nil, a.logger).Load(ctx, seed.DatasetPath)
	if err != nil {
		return err
	}

	platform, closePlatform, err := a.openPlatform(ctx, seed.EngineURL, dryRun)
	if err != nil {
		return err
	}
	defer closePlatform()

	b, err := bootstrap.New(platform,
		bootstrap.WithConfig(seed.Bootstrap),
		bootstrap.WithResolver(resolver),
		bootstrap.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	res, err := b.Run(ctx, ds)
	if err != nil {
		return err
	}

	if exiter, ok := platform.(engine.Exiter); ok {
		if err := exiter.Exit(ctx); err != nil {
			a.logger.Warn("engine exit failed", zap.Error(err))
		}
	}

	if seed.DBPath != "" {
		if err := saveRun(ctx, seed.DBPath, res); err != nil {
			return err
		}
		a.logger.Info("run saved", zap.String("runId", res.RunID), zap.String("db", seed.DBPath))
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), store.FromResult(res).RunInfo)
	}
	printSummary(cmd.OutOrStdout(), res)
	return nil
}

func (a *app) openPlatform(ctx context.Context, url string, dryRun bool) (engine.Platform, func(), error) {
	if dryRun {
		return engine.NewMemoryPlatform(), func() {}, nil
	}
	client, err := wschannel.Dial(ctx, url, nil, wschannel.DefaultOptions(), a.logger)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { client.Close() }, nil
}

func saveRun(ctx context.Context, dbPath string, res *bootstrap.Result) error {
	runs, err := store.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer runs.Close()
	return runs.SaveRun(ctx, store.FromResult(res))
}

// applySeedFlags overrides environment settings with explicitly set flags.
func applySeedFlags(cmd *cobra.Command, seed *config.SeedConfig) error {
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		seed.DatasetPath, _ = flags.GetString("dataset")
	}
	if flags.Changed("engine-url") {
		seed.EngineURL, _ = flags.GetString("engine-url")
	}
	if flags.Changed("alias-file") {
		seed.AliasFile, _ = flags.GetString("alias-file")
	}
	if flags.Changed("db") {
		seed.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("max-posts") {
		n, _ := flags.GetInt("max-posts")
		if n < 1 {
			return fmt.Errorf("invalid --max-posts value: %d", n)
		}
		seed.Bootstrap.MaxPostsPerAgent = n
	}
	if flags.Changed("concurrency") {
		seed.Bootstrap.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("call-timeout") {
		seed.Bootstrap.CallTimeout, _ = flags.GetDuration("call-timeout")
	}
	if flags.Changed("failure-policy") {
		raw, _ := flags.GetString("failure-policy")
		p, err := bootstrap.ParseFailurePolicy(raw)
		if err != nil {
			return err
		}
		seed.Bootstrap.FailurePolicy = p
	}
	if flags.Changed("duplicate-policy") {
		raw, _ := flags.GetString("duplicate-policy")
		p, err := bootstrap.ParseDuplicatePolicy(raw)
		if err != nil {
			return err
		}
		seed.Bootstrap.DuplicatePolicy = p
	}
	return nil
}

func printSummary(w io.Writer, res *bootstrap.Result) {
	s := res.Summary
	fmt.Fprintf(w, "run %s (%s)\n", res.RunID, res.DatasetPath)
	fmt.Fprintf(w, "  agents registered: %d (discarded records: %d, duplicate ids: %d)\n",
		s.Registered, s.DiscardedRecords, s.DuplicateIDs)
	fmt.Fprintf(w, "  follows: %d (skipped: %d, failed: %d)\n", s.Follows, s.SkippedFollows, s.FailedFollows)
	fmt.Fprintf(w, "  posts: %d (skipped: %d, failed: %d)\n", s.Posts, s.SkippedPosts, s.FailedPosts)
}
