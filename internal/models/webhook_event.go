package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"

	EventTypePaymentOutcome = "payment.outcome"
)

// WebhookEvent is the payment-outcome payload carried between the two
// services. ExternalReference is the subscription id the payment settles.
// It is transient: the gateway builds it at settlement time and the
// reconciler consumes it; only delivery bookkeeping persists.
type WebhookEvent struct {
	EventType         string            `json:"event_type"`
	PaymentID         string            `json:"payment_id"`
	ExternalReference uuid.UUID         `json:"external_reference"`
	Status            string            `json:"status"`
	Amount            float64           `json:"amount"`
	Currency          string            `json:"currency"`
	Timestamp         time.Time         `json:"timestamp"`
	FailureReason     *string           `json:"failure_reason,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Validate checks the structural invariants of an already-authenticated event.
func (e *WebhookEvent) Validate() map[string]string {
	problems := make(map[string]string)
	if e.EventType == "" {
		problems["event_type"] = "event_type is required"
	}
	if e.PaymentID == "" {
		problems["payment_id"] = "payment_id is required"
	}
	if e.ExternalReference == uuid.Nil {
		problems["external_reference"] = "external_reference is required"
	}
	if e.Status != EventStatusSuccess && e.Status != EventStatusFailed {
		problems["status"] = "status must be success or failed"
	}
	if e.Amount < 0 {
		problems["amount"] = "amount cannot be negative"
	}
	if e.Currency == "" {
		problems["currency"] = "currency is required"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}
