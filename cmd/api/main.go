package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gregmarra/the-blue-alliance/internal/analytics"
	"github.com/gregmarra/the-blue-alliance/internal/cache"
	"github.com/gregmarra/the-blue-alliance/internal/config"
	"github.com/gregmarra/the-blue-alliance/internal/repository"
	"github.com/gregmarra/the-blue-alliance/internal/routes"
	"github.com/gregmarra/the-blue-alliance/internal/tasks"
	"github.com/gregmarra/the-blue-alliance/pkg/logger"
	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
)

func main() {
	cfg := config.Load()
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting api", slog.String("app", cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}
	sitevars, err := repository.NewSitevarStore(db)
	if err != nil {
		logr.Error("failed to prepare sitevar store", slog.Any("error", err))
		os.Exit(1)
	}
	teams, err := repository.NewTeamStore(db)
	if err != nil {
		logr.Error("failed to prepare team store", slog.Any("error", err))
		os.Exit(1)
	}

	metricsCollector := metrics.New()
	backend := cache.Configure(ctx, cfg.RedisURL, logr)

	queue, closeQueue, err := newTaskQueue(cfg, metricsCollector, logr)
	if err != nil {
		logr.Error("failed to start task queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeQueue()

	analyticsCfg := analytics.ResolveConfig(ctx, cfg.AnalyticsID, sitevars, logr)
	tracker := analytics.NewTracker(analyticsCfg, queue, logr)

	handler := routes.NewRouter(routes.Deps{
		Teams:    teams,
		Sitevars: sitevars,
		Cache:    backend,
		Tracker:  tracker,
		Metrics:  metricsCollector,
		Logger:   logr,
		Started:  time.Now(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("http server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
	logr.Info("api stopped")
}

// newTaskQueue returns the deferred task queue for the configured transport
// and a func releasing it.
func newTaskQueue(cfg *config.Config, m *metrics.Metrics, logr *slog.Logger) (tasks.Queue, func(), error) {
	if cfg.TaskTransport == config.TaskTransportAMQP {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		if err := tasks.DeclareExchange(ch); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return tasks.NewAMQPQueue(ch, m, logr), func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	}

	registry := tasks.NewRegistry(m, logr)
	analytics.NewCollector(cfg.AnalyticsEndpoint, cfg.ProviderTimeout, logr).Register(registry)
	queue := tasks.NewLocalQueue(registry, cfg.TaskWorkers, cfg.TaskBuffer, m, logr)
	return queue, queue.Close, nil
}
