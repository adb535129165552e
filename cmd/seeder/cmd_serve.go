package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/weibo-seed/internal/handler"
	"github.com/zhouzirui/weibo-seed/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve saved runs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}
	cmd.Flags().String("db", "", "SQLite file runs are read from (default $SEED_DB_PATH)")
	cmd.Flags().String("addr", "", "Listen address (default from $PORT)")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()

	dbPath := a.cfg.Seed.DBPath
	if cmd.Flags().Changed("db") {
		dbPath, _ = cmd.Flags().GetString("db")
	}
	addr := a.cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr, _ = cmd.Flags().GetString("addr")
	}

	var runs store.Store
	if dbPath != "" {
		sqlite, err := store.NewSQLiteStore(ctx, dbPath)
		if err != nil {
			return err
		}
		runs = sqlite
	} else {
		a.logger.Warn("no run database configured, serving an empty in-memory store")
		runs = store.NewMemoryStore()
	}
	defer runs.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.NewRouter(runs, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	a.logger.Info("seeder inspection API listening", zap.String("addr", addr))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
