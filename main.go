package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"mailwarm/config"
	"mailwarm/middleware"
	"mailwarm/routes"
	"mailwarm/utils"
	"mailwarm/worker"
)

func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(config.AppConfig.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func main() {
	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging()

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logrus.Warnf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	redisClient, err := config.ConnectRedis()
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Alerts and reports go out through the system relay only.
	notifier := utils.NewNotifier(config.AppConfig.SMTP)
	var alerts worker.AlertSender
	if notifier.Enabled() {
		alerts = notifier
	} else {
		logrus.Warn("SMTP_HOST not set, error notifications and reports are disabled")
	}

	workerCfg := config.AppConfig.Worker
	locker := worker.NewLocker(redisClient)
	recorder := worker.NewRecorder(config.DB, alerts, workerCfg.AlertInterval)

	warmupMailer := utils.NewWarmupMailer(workerCfg.WarmupEmail, workerCfg.SendRetries)
	warmupWorker := worker.NewWarmupWorker(config.DB, warmupMailer, recorder, locker, workerCfg)
	go warmupWorker.Start(ctx)

	receiveWorker := worker.NewReceiveWorker(config.DB, utils.IMAPScanner{}, recorder, locker, workerCfg.ReceiveTick, workerCfg.LockTTL)
	go receiveWorker.Start(ctx)

	if notifier.Enabled() {
		reports := worker.NewReportScheduler(config.DB, notifier, workerCfg.ReportsCron, workerCfg.WeeklyCron)
		if err := reports.Start(); err != nil {
			logrus.Fatalf("Failed to start report scheduler: %v", err)
		}
		defer reports.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName: "mailwarm",
	})
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   config.AppConfig.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   middleware.DefaultCORSConfig().AllowedMethods,
		AllowedHeaders:   middleware.DefaultCORSConfig().AllowedHeaders,
		ExposedHeaders:   middleware.DefaultCORSConfig().ExposedHeaders,
		MaxAge:           3600,
	}))

	opts := routes.Options{
		TestRateLimit: config.AppConfig.RateLimitTest,
		ActivityLimit: workerCfg.ActivityLimit,
		Metrics:       config.AppConfig.MetricsEnabled,
	}
	if redisClient != nil {
		opts.LimiterStorage = middleware.NewRedisStorage(redisClient)
	}
	routes.SetupRoutes(app, config.DB, opts)

	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.Errorf("Server shutdown failed: %v", err)
		}
	}()

	logrus.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
