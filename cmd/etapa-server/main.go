package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"etapabot/internal/core"
	"etapabot/internal/docstatus"
	logx "etapabot/pkg/logger"
	pkgredis "etapabot/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig defines every server parameter, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	Addr            string        `envconfig:"ADDR" default:":5000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	RegistryPath  string        `envconfig:"REGISTRY_PATH" default:"database.txt"`
	DocumentsPath string        `envconfig:"DOCUMENTS_PATH" default:"documentos"`
	ReportTTL     time.Duration `envconfig:"REPORT_TTL" default:"10m"`
	WatchRegistry bool          `envconfig:"WATCH_REGISTRY" default:"true"`

	Redis pkgredis.Config
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := docstatus.Seed(cfg.RegistryPath, cfg.DocumentsPath); err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise data directories")
	}
	registry, err := docstatus.OpenRegistry(cfg.RegistryPath)
	if err != nil {
		logx.Fatal().Err(err).Str("path", cfg.RegistryPath).Msg("failed to load registry")
	}
	if cfg.WatchRegistry {
		if err := registry.Watch(ctx); err != nil {
			logx.Warn().Err(err).Msg("registry hot reload disabled")
		}
	}

	var cache docstatus.ReportCache = docstatus.NewMemoryReportCache(cfg.ReportTTL)
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise redis client")
		}
		defer rdb.Close()
		cache = docstatus.NewRedisReportCache(rdb, cfg.ReportTTL)
		logx.Info().Msg("connected to redis")
	}

	flow := docstatus.NewFlow(registry, docstatus.NewPDFChecker(cfg.DocumentsPath), cache)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           docstatus.NewHandler(flow),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logx.Info().
		Str("addr", cfg.Addr).
		Str("registry", registry.Path()).
		Str("documents", cfg.DocumentsPath).
		Int("students", registry.Len()).
		Msg("etapa-server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Fatal().Err(err).Msg("server failed")
	}
	logx.Info().Msg("etapa-server stopped")
}
