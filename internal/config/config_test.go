package config

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/zhouzirui/weibo-seed/internal/service/bootstrap"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "SEED_DATASET", "SEED_ENGINE_URL", "SEED_MAX_POSTS", "SEED_CONCURRENCY",
		"SEED_CALL_TIMEOUT", "SEED_FAILURE_POLICY", "SEED_DUPLICATE_POLICY", "SEED_ALIAS_FILE",
		"SEED_DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "OTEL_ENDPOINT", "OTEL_SAMPLE_RATIO",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Server.Addr)
	}
	want := bootstrap.Config{
		MaxPostsPerAgent: 5,
		Concurrency:      8,
		CallTimeout:      30 * time.Second,
		FailurePolicy:    bootstrap.FailureContinue,
		DuplicatePolicy:  bootstrap.DuplicateLastWins,
	}
	if cfg.Seed.Bootstrap != want {
		t.Fatalf("unexpected bootstrap config %+v", cfg.Seed.Bootstrap)
	}
	if cfg.Log.Level != zapcore.InfoLevel || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Telemetry.Enabled() {
		t.Fatal("telemetry should be disabled without endpoint")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("SEED_DATASET", " data/weibo.json ")
	t.Setenv("SEED_ENGINE_URL", "ws://localhost:8765/engine")
	t.Setenv("SEED_MAX_POSTS", "2")
	t.Setenv("SEED_CONCURRENCY", "1")
	t.Setenv("SEED_CALL_TIMEOUT", "5s")
	t.Setenv("SEED_FAILURE_POLICY", "abort")
	t.Setenv("SEED_DUPLICATE_POLICY", "reject")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "Console")
	t.Setenv("OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Seed.DatasetPath != "data/weibo.json" || cfg.Seed.EngineURL != "ws://localhost:8765/engine" {
		t.Fatalf("unexpected seed config %+v", cfg.Seed)
	}
	b := cfg.Seed.Bootstrap
	if b.MaxPostsPerAgent != 2 || b.Concurrency != 1 || b.CallTimeout != 5*time.Second {
		t.Fatalf("unexpected bootstrap limits %+v", b)
	}
	if b.FailurePolicy != bootstrap.FailureAbort || b.DuplicatePolicy != bootstrap.DuplicateReject {
		t.Fatalf("unexpected policies %+v", b)
	}
	if cfg.Log.Level != zapcore.DebugLevel || cfg.Log.Format != "console" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if !cfg.Telemetry.Enabled() || cfg.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("unexpected telemetry config %+v", cfg.Telemetry)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                  "80 80",
		"SEED_MAX_POSTS":        "0",
		"SEED_CONCURRENCY":      "many",
		"SEED_CALL_TIMEOUT":     "-1s",
		"SEED_FAILURE_POLICY":   "retry",
		"SEED_DUPLICATE_POLICY": "merge",
		"LOG_LEVEL":             "chatty",
		"LOG_FORMAT":            "xml",
		"OTEL_SAMPLE_RATIO":     "1.5",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestLoadServerConfig(t *testing.T) {
	for in, want := range map[string]string{"": ":8080", "3000": ":3000", ":4000": ":4000"} {
		got, err := loadServerConfig(in)
		if err != nil || got.Addr != want {
			t.Fatalf("loadServerConfig(%q) = %q, %v", in, got.Addr, err)
		}
	}
}
