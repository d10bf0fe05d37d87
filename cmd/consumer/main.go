package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gregmarra/the-blue-alliance/internal/analytics"
	"github.com/gregmarra/the-blue-alliance/internal/config"
	"github.com/gregmarra/the-blue-alliance/internal/consumer"
	"github.com/gregmarra/the-blue-alliance/internal/repository"
	"github.com/gregmarra/the-blue-alliance/internal/routes"
	"github.com/gregmarra/the-blue-alliance/internal/services"
	"github.com/gregmarra/the-blue-alliance/internal/tasks"
	"github.com/gregmarra/the-blue-alliance/pkg/logger"
	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
	"github.com/gregmarra/the-blue-alliance/pkg/retry"
)

const pushExchange = "notifications.direct"

func main() {
	cfg := config.Load()
	if err := cfg.ValidateConsumer(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting push worker", slog.String("app", cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}

	var redisRepo *repository.RedisRepository
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(repository.RedisOptions(cfg.RedisURL))
		redisRepo = repository.NewRedisRepository(rdb, cfg.TokenSuppressTTL)
		defer redisRepo.Close()
	}

	statusStore, err := repository.NewStatusStore(db, "")
	if err != nil {
		logr.Error("failed to prepare status store", slog.Any("error", err))
		os.Exit(1)
	}
	statusUpdater := services.NewStatusUpdater(statusStore, logr)

	tokenSource, err := services.DefaultTokenSource(ctx, cfg.FCMCredentialsFile)
	if err != nil {
		logr.Error("failed to load fcm credentials", slog.Any("error", err))
		os.Exit(1)
	}
	fcmClient := services.NewFCMClient(cfg.FCMProjectID, cfg.FCMBaseURL, tokenSource, cfg.ProviderTimeout, logr)
	metricsCollector := metrics.New()

	retryCfg := retry.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
	}

	// A nil *RedisRepository must not become a non-nil interface.
	var tokens services.TokenCache
	if redisRepo != nil {
		tokens = redisRepo
	}

	processor := services.NewPushProcessor(
		fcmClient,
		statusUpdater,
		tokens,
		metricsCollector,
		logr,
		retryCfg,
	)

	registry := tasks.NewRegistry(metricsCollector, logr)
	analytics.NewCollector(cfg.AnalyticsEndpoint, cfg.ProviderTimeout, logr).Register(registry)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logr.Error("failed to connect rabbitmq", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	pushBase := consumer.NewBaseConsumer(
		conn,
		consumer.Binding{
			Exchange:        pushExchange,
			RoutingKey:      "push",
			Queue:           cfg.PushQueue,
			DeadLetterQueue: cfg.DeadLetterQueue,
		},
		cfg.PrefetchCount,
		cfg.WorkerCount,
		logr,
	)
	pushConsumer := consumer.NewPushConsumer(pushBase, processor, logr, cfg.MaxDeliveries)

	taskBase := consumer.NewBaseConsumer(
		conn,
		consumer.Binding{
			Exchange:   tasks.Exchange,
			RoutingKey: tasks.RoutingKey,
			Queue:      cfg.TaskQueue,
		},
		cfg.PrefetchCount,
		cfg.TaskWorkers,
		logr,
	)
	taskConsumer := consumer.NewTaskConsumer(taskBase, registry, logr)

	started := time.Now()
	httpSrv := startHTTPServer(cfg.WorkerHTTPPort, routes.NewOpsRouter(metricsCollector, started), logr)

	var wg sync.WaitGroup
	for name, run := range map[string]func(context.Context) error{
		"push":  pushConsumer.Start,
		"tasks": taskConsumer.Start,
	} {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil {
				logr.Error("consumer exited", slog.String("consumer", name), slog.Any("error", err))
				stop()
			}
		}(name, run)
	}
	wg.Wait()

	shutdownHTTP(httpSrv, logr)
	logr.Info("push worker stopped")
}

func startHTTPServer(port string, handler http.Handler, logr *slog.Logger) *http.Server {
	if port == "" {
		port = "8082"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
