package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"payflow/internal/common"
	"payflow/internal/models"
	"payflow/internal/services"

	"github.com/labstack/echo/v4"
)

// WebhookHandlers receives payment-outcome webhooks. Signature verification
// happens upstream in middleware.WebhookSignature; by the time a request
// reaches this handler its body is authenticated.
type WebhookHandlers struct {
	reconciler services.ReconcilerService
}

func NewWebhookHandlers(reconciler services.ReconcilerService) *WebhookHandlers {
	return &WebhookHandlers{reconciler: reconciler}
}

// HandlePaymentWebhook decodes the event and hands it to the reconciler.
func (h *WebhookHandlers) HandlePaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return common.SendValidationError(c, "body", "Failed to read request body")
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return common.SendValidationError(c, "body", "Webhook payload is not valid JSON")
	}

	result, err := h.reconciler.Apply(c.Request().Context(), &event)
	if err != nil {
		return common.RespondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"received":        true,
		"subscription_id": result.SubscriptionID,
		"new_status":      result.NewStatus,
		"processed_at":    result.ProcessedAt,
	})
}
