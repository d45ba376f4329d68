package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeromwolf/FluxNews/internal/collector"
	"github.com/jeromwolf/FluxNews/internal/config"
	"github.com/jeromwolf/FluxNews/internal/email"
	"github.com/jeromwolf/FluxNews/internal/handler"
	"github.com/jeromwolf/FluxNews/internal/repository/postgres"
	"github.com/jeromwolf/FluxNews/internal/router"
	dedupService "github.com/jeromwolf/FluxNews/internal/service/dedup"
	impactService "github.com/jeromwolf/FluxNews/internal/service/impact"
	notificationService "github.com/jeromwolf/FluxNews/internal/service/notification"
	"github.com/jeromwolf/FluxNews/internal/service/sentiment"
	"github.com/jeromwolf/FluxNews/pkg/httpclient"
	"github.com/jeromwolf/FluxNews/pkg/logger"
	"github.com/jeromwolf/FluxNews/pkg/messaging"
	redisbroker "github.com/jeromwolf/FluxNews/pkg/messaging/redis"
	"github.com/jeromwolf/FluxNews/pkg/metrics"
	"github.com/jeromwolf/FluxNews/pkg/ratelimit"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log)
	if err != nil {
		log.Warn("redis unavailable, running without event fan-out", "error", err.Error())
		broker = messaging.NopBroker{}
	}
	defer broker.Close()

	m := metrics.NewMetrics("fluxnews")

	base := postgres.NewBaseRepository(db)
	articleRepo := postgres.NewArticleRepository(base)
	companyRepo := postgres.NewCompanyRepository(base)
	notificationRepo := postgres.NewNotificationRepository(base)
	settingsRepo := postgres.NewSettingsRepository(base)
	userRepo := postgres.NewUserRepository(base)

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())
	limiter.SetMetrics(m)
	retryHandler := ratelimit.NewRetryHandler(cfg.Collector.MaxRetries, cfg.Collector.BackoffFactor)
	retryHandler.SetMetrics(m)
	client := httpclient.New(httpclient.Config{
		Timeout:   cfg.Collector.FetchTimeout,
		GlobalRPS: cfg.Collector.GlobalRPS,
	},
		httpclient.WithLimiter(limiter),
		httpclient.WithRetryHandler(retryHandler),
	)

	queue := notificationService.NewQueue(cfg.Pipeline.QueueCapacity, m, log)
	registry := notificationService.NewRegistry(m, log)

	var emailSender notificationService.EmailSender
	if cfg.Email.Enabled {
		emailSender = email.NewService(cfg.Email, userRepo, log)
	}

	dispatcher := notificationService.NewDispatcher(notificationService.DispatcherConfig{
		Queue:       queue,
		Registry:    registry,
		Store:       notificationRepo,
		Settings:    settingsRepo,
		SettingsTTL: cfg.Pipeline.SettingsCacheTTL,
		Broker:      broker,
		Email:       emailSender,
		Metrics:     m,
		Logger:      log,
	})

	notifier := notificationService.NewService(notificationService.ServiceConfig{
		Queue:      queue,
		Dispatcher: dispatcher,
		Registry:   registry,
		Store:      notificationRepo,
		Settings:   settingsRepo,
		Companies:  companyRepo,
		Retention:  cfg.Pipeline.NotificationRetention,
		Metrics:    m,
		Logger:     log,
	})

	deduper := dedupService.NewService(cfg.Pipeline.SimilarityThreshold, log)
	analyzer := sentiment.NewRuleBased()
	calculator := impactService.NewCalculator(log)
	pipeline := impactService.NewPipeline(
		calculator, analyzer, companyRepo, articleRepo, notifier, m, log)

	sources := make([]collector.Source, 0, len(cfg.Collector.Feeds))
	for _, feed := range cfg.Collector.Feeds {
		sources = append(sources,
			collector.NewRSSSource(feed, client, cfg.Collector.EnrichContent, log))
	}
	runner := collector.NewRunner(collector.RunnerConfig{
		Sources:  sources,
		Interval: cfg.Collector.Interval,
		Dedup:    deduper,
		Articles: articleRepo,
		Pipeline: pipeline,
		Metrics:  m,
		Logger:   log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := notifier.Start(ctx); err != nil {
		log.Fatal(err, "failed to start notification service")
	}
	runner.Start(ctx)

	r := router.NewRouter(
		handler.NewHealthHandler(db, version),
		handler.NewStatsHandler(notifier, deduper, client),
		handler.NewNotificationHandler(notifier),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}
	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	cancel()
	runner.Stop()
	notifier.Stop()
	log.Info("pipeline exited")
}
