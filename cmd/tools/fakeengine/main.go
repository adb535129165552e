// Command fakeengine serves an in-process simulation engine over the
// websocket action channel, for local seeding runs without the real engine.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/weibo-seed/internal/engine"
	"github.com/zhouzirui/weibo-seed/internal/engine/wschannel"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8765", "监听地址")
	path := flag.String("path", "/engine", "websocket 路径")
	delay := flag.Duration("delay", 0, "每个动作的模拟延迟")
	stay := flag.Bool("stay", false, "收到 exit 后继续运行")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform := engine.NewMemoryPlatform()
	platform.Delay = *delay
	server := wschannel.NewServer(platform, logger)

	mux := http.NewServeMux()
	mux.Handle(*path, server)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if !*stay {
		go func() {
			select {
			case <-server.Done():
				logger.Info("seeding client exited")
				stop()
			case <-ctx.Done():
			}
		}()
	}

	logger.Info("fake engine listening", zap.String("addr", *addr), zap.String("path", *path))
	if err := serve(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("fake engine stopped",
		zap.Int("signUps", len(platform.CallsOf(engine.ActionSignUp))),
		zap.Int("follows", len(platform.CallsOf(engine.ActionFollow))),
		zap.Int("posts", len(platform.CallsOf(engine.ActionCreatePost))),
	)
}

func serve(ctx context.Context, srv *http.Server) error {
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
