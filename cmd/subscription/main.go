package main

import (
	"fmt"
	"log"
	"time"

	"payflow/internal/caching"
	"payflow/internal/config"
	"payflow/internal/handlers"
	"payflow/internal/jobs/background"
	"payflow/internal/middleware"
	"payflow/internal/repositories"
	"payflow/internal/services"
	"payflow/internal/signature"
	"payflow/pkg/database"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// Repositories
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)
	paymentRecordRepo := repositories.NewPaymentRecordRepo(pool)
	idempotencyRepo := repositories.NewIdempotencyRepo(pool)

	// Services
	codec := signature.NewCodec(cfg.WebhookSecret)
	txExecutor := database.NewTxExecutor(pool)
	gatewayClient := services.NewPaymentGatewayClient(cfg.PaymentServiceURL, cfg.HTTPTimeout)
	subscriptionSvc := services.NewSubscriptionService(subscriptionRepo, paymentRecordRepo, gatewayClient, cacheSvc)
	reconcilerSvc := services.NewReconcilerService(txExecutor, cacheSvc)

	// Handlers
	subscriptionHandlers := handlers.NewSubscriptionHandlers(subscriptionSvc)
	webhookHandlers := handlers.NewWebhookHandlers(reconcilerSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc)

	// Background jobs
	jobScheduler := background.NewJobScheduler(idempotencyRepo, subscriptionSvc)
	if err := jobScheduler.Start(); err != nil {
		log.Fatalf("Failed to start job scheduler: %v", err)
	}
	defer func() {
		if err := jobScheduler.Stop(); err != nil {
			log.Printf("Job scheduler shutdown error: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.RequestID())

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	idempotencyGate := middleware.NewIdempotencyMiddleware(idempotencyRepo, cfg.IdempotencyTTL, cfg.RequireIdempotencyKey).Gate()

	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)

	v1 := e.Group("/v1")

	v1.GET("/plans", subscriptionHandlers.ListPlans)
	v1.GET("/subscriptions", subscriptionHandlers.ListUserSubscriptions)
	v1.GET("/subscriptions/:id", subscriptionHandlers.GetSubscription)

	// Mutations go through the dedup gate.
	v1.POST("/subscriptions", subscriptionHandlers.CreateSubscription, idempotencyGate)
	v1.DELETE("/subscriptions/:id", subscriptionHandlers.CancelSubscription, idempotencyGate)
	v1.POST("/subscriptions/:id/upgrade", subscriptionHandlers.UpgradeSubscription, idempotencyGate)
	v1.POST("/subscriptions/:id/downgrade", subscriptionHandlers.DowngradeSubscription, idempotencyGate)

	// Order matters: the rate limiter caps abusive senders, the signature
	// check authenticates the delivery, and only then does the gate dedupe.
	// An unsigned replay must never be served from the fingerprint store.
	v1.POST("/webhooks/payment", webhookHandlers.HandlePaymentWebhook,
		middleware.RateLimit(cacheSvc, 100, time.Minute),
		middleware.WebhookSignature(codec), idempotencyGate)

	log.Printf("Subscription service v%s starting on port %d", version, cfg.Port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Port)))
}
