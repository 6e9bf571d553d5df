package main

import (
	"context"
	"log"

	"patient-portal-server/internal/cache"
	"patient-portal-server/internal/config"
	"patient-portal-server/internal/database"
	"patient-portal-server/internal/identity"
	"patient-portal-server/internal/logging"
	"patient-portal-server/internal/notify"
	"patient-portal-server/internal/provider"
	"patient-portal-server/internal/repo"
	"patient-portal-server/internal/server"
	"patient-portal-server/internal/service"
	"patient-portal-server/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	db, err := database.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	paymentRepo := repo.NewPaymentRepo(db)
	notificationRepo := repo.NewNotificationRepo(db)

	registry := provider.NewRegistry(
		provider.WithBreaker(provider.NewMTN()),
		provider.WithBreaker(provider.NewOrange()),
		provider.WithBreaker(provider.NewAirtel()),
	)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set in the environment")
	}
	var verifier identity.Verifier = identity.NewJWTVerifier(cfg.JWTSecret)

	var statusCache *cache.StatusCache
	if cfg.RedisAddr != "" {
		statusCache = cache.NewStatusCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}

	notifier := notify.New(notificationRepo, nil, cfg.PushEndpoint, logger)

	payments := service.NewPaymentService(
		cfg.AppName,
		paymentRepo,
		registry,
		verifier,
		notifier,
		statusCache,
		cfg.ProviderTimeout,
		logger,
	)

	if cfg.ExpiryEnabled {
		w := worker.NewExpiryWorker(paymentRepo, cfg.ExpiryAfter, cfg.ExpirySweep, logger)
		go w.Run(ctx)
	}

	handlers := server.NewHandlers(payments, notificationRepo, cfg.WebhookSecret, logger)
	r := server.NewRouter(cfg, handlers, verifier, db)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
