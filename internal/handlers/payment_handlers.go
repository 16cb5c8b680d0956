package handlers

import (
	"errors"
	"net/http"

	"payflow/internal/common"
	"payflow/internal/services"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

// PaymentHandlers handles the gateway simulator's HTTP surface.
type PaymentHandlers struct {
	service services.PaymentService
}

func NewPaymentHandlers(service services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{service: service}
}

// InitiatePayment accepts a charge and settles it in the background. The
// outcome arrives at the subscription service via webhook, not in this
// response.
func (h *PaymentHandlers) InitiatePayment(c echo.Context) error {
	var req services.InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}

	payment, err := h.service.Initiate(c.Request().Context(), &req)
	if err != nil {
		return common.RespondError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
}

// GetPayment returns a payment with its settlement and delivery bookkeeping.
func (h *PaymentHandlers) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "Invalid payment ID")
	}

	payment, err := h.service.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendError(c, http.StatusNotFound, common.CodePaymentNotFound, "Payment not found", nil)
		}
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, payment)
}

// ResendWebhook re-dispatches the outcome event for a settled payment.
func (h *PaymentHandlers) ResendWebhook(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "Invalid payment ID")
	}

	payment, err := h.service.ResendWebhook(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendError(c, http.StatusNotFound, common.CodePaymentNotFound, "Payment not found", nil)
		}
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"payment_id":       payment.ID,
		"webhook_status":   payment.WebhookStatus,
		"webhook_attempts": payment.WebhookAttempts,
	})
}
