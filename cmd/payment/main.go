package main

import (
	"context"
	"fmt"
	"log"

	"payflow/internal/config"
	"payflow/internal/handlers"
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

	// Repositories
	gatewayPaymentRepo := repositories.NewGatewayPaymentRepo(pool)
	idempotencyRepo := repositories.NewIdempotencyRepo(pool)

	// Services
	codec := signature.NewCodec(cfg.WebhookSecret)
	dispatcher := services.NewWebhookDispatcher(cfg.SubscriptionWebhookURL, codec, cfg.HTTPTimeout, cfg.WebhookMaxAttempts, cfg.WebhookBaseDelay)
	paymentSvc := services.NewPaymentService(gatewayPaymentRepo, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	services.StartResultLogger(ctx, paymentSvc.Results())

	// Handlers
	paymentHandlers := handlers.NewPaymentHandlers(paymentSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, nil)

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

	v1.GET("/payments/:id", paymentHandlers.GetPayment)

	v1.POST("/payments/initiate", paymentHandlers.InitiatePayment, idempotencyGate)
	v1.POST("/payments/:id/resend-webhook", paymentHandlers.ResendWebhook, idempotencyGate)

	log.Printf("Payment gateway simulator v%s starting on port %d", version, cfg.Port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Port)))
}
