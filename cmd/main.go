package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"payverify/config"
	"payverify/database"
	"payverify/handler"
	"payverify/helper"
	"payverify/lib"
	"payverify/middleware"
	"payverify/poller"
	"payverify/repository"
	"payverify/router"
	"payverify/scheduler"
	"payverify/service"
	"payverify/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

func main() {
	config.SetupEnvFile()
	settings, err := config.Load()
	if err != nil {
		helper.Fatal("%v", err)
	}
	if err := settings.ValidateServer(); err != nil {
		helper.Fatal("%v", err)
	}

	logFile, err := config.SetupLogfile(settings.LogDir, settings.LogLevel)
	if err != nil {
		helper.Warn("file logging disabled: %v", err)
	} else {
		defer logFile.Close()
	}

	helper.AppLogger.Section("payverify starting on " + settings.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(settings)
	if err != nil {
		helper.Fatal("%v", err)
	}
	redisClient := database.InitRedis(settings.RedisAddr, settings.RedisPass, settings.RedisDB)
	mongoClient, err := database.SetupMongoDB(ctx, settings.MongoURI)
	if err != nil {
		helper.Warn("verification log disabled: %v", err)
	}

	middleware.PrometheusInit(prometheus.DefaultRegisterer)

	transactions := repository.NewTransactionRepository(db)
	methods := repository.NewPaymentMethodRepository(db)

	clients, err := lib.NewMobileMoneyClients(nil, string(poller.MethodOrangeMoney), string(poller.MethodMTNMoMo))
	if err != nil {
		helper.Fatal("%v", err)
	}
	providers := make(map[string]service.Provider, len(clients))
	for slug, client := range clients {
		providers[slug] = client
	}

	outcomes := worker.NewOutcomeWorker(transactions, settings.CallbackSecret, settings.NotificationRetries, settings.NotificationRetryDelay)
	payments := service.NewPaymentService(transactions, methods, providers, outcomes, service.PaymentServiceConfig{
		CallbackSecret: settings.CallbackSecret,
		InquiryAfter:   settings.InquiryAfter,
		PendingExpiry:  settings.PendingExpiry,
	})

	var notifier service.Notifier = service.NopNotifier{}
	if redisClient != nil {
		notifier = service.NewRedisNotifier(redisClient)
	}
	var recorder service.Recorder = service.NopRecorder{}
	var logs handler.VerificationLogReader
	if mongoClient != nil {
		logRepo := repository.NewVerificationLogRepository(mongoClient, settings.MongoDatabase)
		recorder, logs = logRepo, logRepo
	}
	verifications := service.NewVerificationService(payments, service.VerificationServiceConfig{
		Poller:      pollerConfig(settings.Poller),
		SessionTTL:  settings.SessionTTL,
		MaxSessions: settings.MaxSessions,
	}, notifier, recorder, middleware.VerificationMetrics{})

	sched := scheduler.NewTransactionScheduler(payments, scheduler.DefaultExpirySpec, scheduler.DefaultReconcileSpec)
	if err := sched.Start(); err != nil {
		helper.Fatal("%v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes.Run(ctx)
	}()

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ServerHeader:  "Fiber",
		AppName:       settings.AppName,
	})
	router.SetupRoutes(app, router.Handlers{
		Payments:      handler.NewPaymentHandler(payments),
		Verifications: handler.NewVerificationHandler(verifications, payments, logs),
		Health:        pinger(db),
		JWTSecret:     settings.JWTSecret,
	})

	go func() {
		if err := app.Listen(settings.HTTPAddr); err != nil {
			helper.Error("Error starting HTTP server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	helper.Info("Shutting down server...")

	verifications.Shutdown()
	sched.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		helper.Error("server shutdown: %v", err)
	}
	wg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if mongoClient != nil {
		_ = mongoClient.Disconnect(closeCtx)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	helper.Info("Server stopped gracefully.")
}

func pollerConfig(s config.PollerSettings) poller.Config {
	return poller.Config{
		Interval:             s.Interval,
		Ceiling:              s.Ceiling,
		NavigateDelay:        s.NavigateDelay,
		CallTimeout:          s.CallTimeout,
		WarnAfterErrors:      s.WarnAfterErrors,
		MaxConsecutiveErrors: s.MaxConsecutiveErrors,
		Logger:               helper.NewLogger("poller"),
	}
}

func pinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}
}
