package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dynpricing/dashboard-service/config"
	"github.com/dynpricing/dashboard-service/internal/api"
	"github.com/dynpricing/dashboard-service/internal/dashboard"
	"github.com/dynpricing/dashboard-service/internal/integrations"
	"github.com/dynpricing/dashboard-service/internal/query"
	"github.com/dynpricing/dashboard-service/internal/settings"
	"github.com/dynpricing/dashboard-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting dashboard service")

	ctx := context.Background()

	telemetryCfg := telemetry.GetConfigFromEnv()
	telemetryCfg.Enabled = telemetryCfg.Enabled || cfg.Telemetry.Enabled
	if cfg.Telemetry.Endpoint != "" {
		telemetryCfg.Endpoint = cfg.Telemetry.Endpoint
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	client, err := api.New(api.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		MaxRetries:        cfg.API.MaxRetries,
		InitialBackoff:    time.Duration(cfg.API.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:        time.Duration(cfg.API.MaxBackoffMs) * time.Millisecond,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	}, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}

	cache := query.New(query.Config{
		RefreshConcurrency: cfg.Cache.RefreshConcurrency,
		FetchTimeout:       cfg.Cache.FetchTimeout,
	}, *logger)

	store, err := settings.NewStore(cfg.Settings.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Settings.Path).Msg("Failed to open settings store")
	}

	queries := dashboard.NewQueries(client, cache)
	n8n := integrations.NewN8N(client, store, cache, *logger)
	telegram := integrations.NewTelegram(client, store, *logger)

	srv, err := dashboard.NewServer(cfg, *logger, queries, store, n8n, telegram)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	pollerCtx, stopPoller := context.WithCancel(ctx)
	go srv.StartPoller(pollerCtx)
	srv.WarmStartupQueries()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	srv.StopPoller()
	stopPoller()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	cache.Close()
	if err := telemetryShutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &logger
}
