package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"

	"github.com/zhouzirui/weibo-seed/internal/service/bootstrap"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Seed      SeedConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// environment is the raw view of the process environment.
type environment struct {
	Port string `env:"PORT" envDefault:"8080"`

	Dataset         string        `env:"SEED_DATASET"`
	EngineURL       string        `env:"SEED_ENGINE_URL"`
	MaxPosts        int           `env:"SEED_MAX_POSTS"        envDefault:"5"`
	Concurrency     int           `env:"SEED_CONCURRENCY"      envDefault:"8"`
	CallTimeout     time.Duration `env:"SEED_CALL_TIMEOUT"     envDefault:"30s"`
	FailurePolicy   string        `env:"SEED_FAILURE_POLICY"   envDefault:"continue"`
	DuplicatePolicy string        `env:"SEED_DUPLICATE_POLICY" envDefault:"last-wins"`
	AliasFile       string        `env:"SEED_ALIAS_FILE"`
	DBPath          string        `env:"SEED_DB_PATH"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OTELEndpoint    string  `env:"OTEL_ENDPOINT"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var raw environment
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	server, err := loadServerConfig(raw.Port)
	if err != nil {
		return nil, err
	}

	seed, err := loadSeedConfig(raw)
	if err != nil {
		return nil, err
	}

	log, err := loadLogConfig(raw.LogLevel, raw.LogFormat)
	if err != nil {
		return nil, err
	}

	if raw.OTELSampleRatio < 0 || raw.OTELSampleRatio > 1 {
		return nil, fmt.Errorf("invalid OTEL_SAMPLE_RATIO value: %v", raw.OTELSampleRatio)
	}

	return &Config{
		Server:    server,
		Seed:      seed,
		Log:       log,
		Telemetry: TelemetryConfig{
			Endpoint:    strings.TrimSpace(raw.OTELEndpoint),
			SampleRatio: raw.OTELSampleRatio,
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(port string) (ServerConfig, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// SeedConfig 描述数据集注入相关配置。
type SeedConfig struct {
	DatasetPath string
	EngineURL   string
	AliasFile   string
	DBPath      string
	Bootstrap   bootstrap.Config
}

func loadSeedConfig(raw environment) (SeedConfig, error) {
	failure, err := bootstrap.ParseFailurePolicy(raw.FailurePolicy)
	if err != nil {
		return SeedConfig{}, fmt.Errorf("SEED_FAILURE_POLICY: %w", err)
	}
	duplicate, err := bootstrap.ParseDuplicatePolicy(raw.DuplicatePolicy)
	if err != nil {
		return SeedConfig{}, fmt.Errorf("SEED_DUPLICATE_POLICY: %w", err)
	}
	if raw.MaxPosts < 1 {
		return SeedConfig{}, fmt.Errorf("invalid SEED_MAX_POSTS value: %d", raw.MaxPosts)
	}
	if raw.Concurrency < 1 {
		return SeedConfig{}, fmt.Errorf("invalid SEED_CONCURRENCY value: %d", raw.Concurrency)
	}
	if raw.CallTimeout <= 0 {
		return SeedConfig{}, fmt.Errorf("invalid SEED_CALL_TIMEOUT value: %s", raw.CallTimeout)
	}

	return SeedConfig{
		DatasetPath: strings.TrimSpace(raw.Dataset),
		EngineURL:   strings.TrimSpace(raw.EngineURL),
		AliasFile:   strings.TrimSpace(raw.AliasFile),
		DBPath:      strings.TrimSpace(raw.DBPath),
		Bootstrap: bootstrap.Config{
			MaxPostsPerAgent: raw.MaxPosts,
			Concurrency:      raw.Concurrency,
			CallTimeout:      raw.CallTimeout,
			FailurePolicy:    failure,
			DuplicatePolicy:  duplicate,
		},
	}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  zapcore.Level
	Format string
}

func loadLogConfig(level, format string) (LogConfig, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value: %q", level)
	}

	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "json", "console":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value: %q", format)
	}
	return LogConfig{Level: lvl, Format: format}, nil
}

// TelemetryConfig 描述链路追踪配置。未设置 Endpoint 时不启用。
type TelemetryConfig struct {
	Endpoint    string
	SampleRatio float64
}

// Enabled 表示是否配置了 OTLP 导出地址。
func (c TelemetryConfig) Enabled() bool {
	return c.Endpoint != ""
}
