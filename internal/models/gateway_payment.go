package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook delivery states for a settled gateway payment.
const (
	WebhookStatusPending   = "pending"
	WebhookStatusDelivered = "delivered"
	WebhookStatusFailed    = "failed"
)

// GatewayPayment is the payment simulator's own record of an initiated charge,
// including delivery bookkeeping for the outcome webhook. WebhookKey is derived
// once at creation and reused for every delivery attempt so the receiver can
// dedupe repeats.
type GatewayPayment struct {
	ID                uuid.UUID `json:"id" db:"id"`
	ExternalReference uuid.UUID `json:"external_reference" db:"external_reference"`
	Amount            float64   `json:"amount" db:"amount"`
	Currency          string    `json:"currency" db:"currency"`
	Status            string    `json:"status" db:"status"`
	FailureReason     *string   `json:"failure_reason" db:"failure_reason"`
	WebhookKey        string    `json:"webhook_key" db:"webhook_key"`
	WebhookStatus     string    `json:"webhook_status" db:"webhook_status"`
	WebhookAttempts   int       `json:"webhook_attempts" db:"webhook_attempts"`
	LastError         *string   `json:"last_error" db:"last_error"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
