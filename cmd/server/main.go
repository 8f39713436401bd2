package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/middleware"
	"github.com/anonto42/feedpulse/backend/internal/realtime"
	"github.com/anonto42/feedpulse/backend/internal/router"
	"github.com/anonto42/feedpulse/backend/internal/translator"
	"github.com/anonto42/feedpulse/backend/pkg/config"
	"github.com/anonto42/feedpulse/backend/pkg/firebase"
	"github.com/anonto42/feedpulse/backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("server stopped with error")
	}
	log.Info("server stopped")
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("initialize databases: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.CloseDB(context.Background())
		}
	}()
	if err := router.Migrate(db.Postgres); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect event bus: %w", err)
	}
	bus := events.New(transport,
		events.WithLogger(log.WithField("component", "bus")),
		events.WithPublishTimeout(cfg.BusPublishTimeout),
	)
	registry := realtime.NewRegistry(log.WithField("component", "realtime"))
	repos := router.NewRepositories(db.Postgres, db.Mongo.Database(cfg.MongoDatabase))

	// The translator outlives ctx so that shutdown can stop it in order.
	tr := translator.New(repos.Notifications, registry,
		translator.WithLogger(log.WithField("component", "translator")),
		translator.WithStoreTimeout(cfg.StoreTimeout),
	)
	sub, err := tr.Start(context.Background(), bus)
	if err != nil {
		bus.Close()
		return err
	}

	var verifier middleware.TokenVerifier
	if cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			sub.Close()
			bus.Close()
			return fmt.Errorf("initialize firebase: %w", err)
		}
		verifier = app.AuthClient
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validators.NewValidator()
	httpLog := log.WithField("component", "http")
	router.SetupMiddleware(e, cfg.AllowedOrigins, httpLog)
	router.SetupRoutes(e, router.Dependencies{
		Repos:          repos,
		Bus:            bus,
		Registry:       registry,
		Verifier:       verifier,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         httpLog,
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.WithField("port", cfg.MetricsPort).Info("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "bus": cfg.BusDriver}).Info("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-errCh:
		log.WithError(serveErr).Error("server failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Order matters: stop intake, drain the translator, then release the
	// stores and transports it was using.
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := sub.Close(); err != nil {
		log.WithError(err).Warn("closing translator subscription")
	}
	db.CloseDB(shutdownCtx)
	dbClosed = true
	if err := bus.Close(); err != nil {
		log.WithError(err).Warn("closing event bus")
	}
	registry.Close()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics shutdown")
	}
	return serveErr
}

func newTransport(ctx context.Context, cfg *config.Config) (events.Transport, error) {
	switch cfg.BusDriver {
	case config.BusNATS:
		return events.DialNATS(cfg.NATSURL, cfg.BusChannel)
	case config.BusMemory:
		log.Warn("using the in-process event bus; events stay inside this process")
		return events.NewMemoryTransport(), nil
	default:
		return events.DialRedis(ctx, cfg.RedisURL, cfg.BusChannel)
	}
}
