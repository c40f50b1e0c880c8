package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/outage-monitor/internal/adapter/geoapify"
	httpadapter "github.com/couchcryptid/outage-monitor/internal/adapter/http"
	"github.com/couchcryptid/outage-monitor/internal/adapter/postgres"
	"github.com/couchcryptid/outage-monitor/internal/adapter/smtp"
	"github.com/couchcryptid/outage-monitor/internal/config"
	"github.com/couchcryptid/outage-monitor/internal/domain"
	"github.com/couchcryptid/outage-monitor/internal/observability"
	"github.com/couchcryptid/outage-monitor/internal/pipeline"
	"github.com/couchcryptid/outage-monitor/internal/scheduler"
	"github.com/couchcryptid/outage-monitor/internal/scrape"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Geocoding is feature-flagged via GEOCODE_ENABLED / GEOAPIFY_KEY.
	var geocoder domain.Geocoder
	if cfg.GeocodeEnabled {
		client := geoapify.NewClient(cfg.GeoapifyKey, cfg.GeocodeTimeout, metrics, logger)
		geocoder = geoapify.NewCachedGeocoder(client, cfg.GeocodeCacheSize)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("geoapify geocoding enabled", "cache_size", cfg.GeocodeCacheSize, "timeout", cfg.GeocodeTimeout)
	} else {
		logger.Info("geoapify geocoding disabled")
	}

	var notifier pipeline.Notifier
	if cfg.NotificationsEnabled() {
		notifier = smtp.NewMailer(smtp.Config{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUsername,
			Pass: cfg.SMTPPassword,
			From: cfg.SMTPFrom,
		}, logger)
		logger.Info("smtp notifications enabled", "host", cfg.SMTPHost)
	} else {
		logger.Info("smtp notifications disabled, matches will be logged")
	}

	monitor := pipeline.New(pipeline.Deps{
		Sources:  cfg.Sources,
		Location: cfg.Location,
		Fetcher:  scrape.NewFetcher(cfg.FetchTimeout, "", logger),
		Store:    store,
		Geocoder: geocoder,
		Matcher:  domain.NewMatchEngine(geocoder, cfg.MatchRadiusKm, logger),
		Notifier: notifier,
		Logger:   logger,
		Metrics:  metrics,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, monitor, monitor, logger)

	trigger := scheduler.New(scheduler.Schedule{
		Minute:    cfg.ScheduleMinute,
		StartHour: cfg.ScheduleStartHour,
		EndHour:   cfg.ScheduleEndHour,
		Location:  cfg.Location,
	}, cfg.MisfireGrace, monitor, nil, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the schedule loop, with an optional immediate first cycle.
	go func() {
		if cfg.RunOnStart {
			if err := monitor.RunCycle(ctx); err != nil {
				logger.Error("initial cycle failed", "error", err)
			}
		}
		trigger.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
