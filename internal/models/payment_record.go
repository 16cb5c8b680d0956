package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// PaymentRecord is owned by a Subscription. At most one record should be
// pending while a payment is outstanding.
type PaymentRecord struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	SubscriptionID       uuid.UUID `json:"subscription_id" db:"subscription_id"`
	Amount               float64   `json:"amount" db:"amount"`
	Currency             string    `json:"currency" db:"currency"`
	Status               string    `json:"status" db:"status"`
	PaymentCorrelationID *string   `json:"payment_correlation_id" db:"payment_correlation_id"`
	FailureReason        *string   `json:"failure_reason" db:"failure_reason"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
