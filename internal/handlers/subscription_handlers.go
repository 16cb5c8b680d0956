package handlers

import (
	"net/http"

	"payflow/internal/common"
	"payflow/internal/models"
	"payflow/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers handles subscription lifecycle HTTP requests
type SubscriptionHandlers struct {
	service services.SubscriptionService
}

func NewSubscriptionHandlers(service services.SubscriptionService) *SubscriptionHandlers {
	return &SubscriptionHandlers{service: service}
}

// ListPlans returns the static plan catalog.
func (h *SubscriptionHandlers) ListPlans(c echo.Context) error {
	plans := models.AvailablePlans()
	result := make([]models.PlanConfig, 0, len(plans))
	for _, id := range []string{"basic", "premium", "enterprise"} {
		if plan, ok := plans[id]; ok {
			result = append(result, plan)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"plans": result})
}

// CreateSubscription opens a subscription and starts its first charge. The
// response is 202: activation depends on the payment outcome webhook.
func (h *SubscriptionHandlers) CreateSubscription(c echo.Context) error {
	var req services.CreateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}

	subscription, err := h.service.Create(c.Request().Context(), &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusAccepted, subscription)
}

// GetSubscription returns a subscription with its payment history.
func (h *SubscriptionHandlers) GetSubscription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "Invalid subscription ID")
	}

	detail, err := h.service.GetByID(c.Request().Context(), id)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// ListUserSubscriptionsRequest represents query parameters for listing
type ListUserSubscriptionsRequest struct {
	UserID string `query:"user_id"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

// ListUserSubscriptions returns a user's subscriptions, newest first.
func (h *SubscriptionHandlers) ListUserSubscriptions(c echo.Context) error {
	var req ListUserSubscriptionsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "Invalid query parameters")
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return common.SendValidationError(c, "user_id", "user_id query parameter must be a valid UUID")
	}

	subscriptions, err := h.service.ListByUser(c.Request().Context(), userID, req.Limit, req.Offset)
	if err != nil {
		return common.RespondError(c, err)
	}
	if subscriptions == nil {
		subscriptions = []*models.Subscription{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"subscriptions": subscriptions,
		"count":         len(subscriptions),
	})
}

// CancelSubscription cancels immediately.
func (h *SubscriptionHandlers) CancelSubscription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "Invalid subscription ID")
	}

	subscription, err := h.service.Cancel(c.Request().Context(), id)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, subscription)
}

// UpgradeSubscription switches to a pricier plan and charges the prorated
// difference.
func (h *SubscriptionHandlers) UpgradeSubscription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "Invalid subscription ID")
	}

	var req services.ChangePlanRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}

	result, err := h.service.Upgrade(c.Request().Context(), id, &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusAccepted, result)
}

// DowngradeSubscription schedules a cheaper plan for the period boundary.
func (h *SubscriptionHandlers) DowngradeSubscription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "Invalid subscription ID")
	}

	var req services.ChangePlanRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}

	subscription, err := h.service.Downgrade(c.Request().Context(), id, &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, subscription)
}
