package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription status values. Transitions are monotone:
// pending -> active|cancelled, active -> cancelled|expired.
const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

type Subscription struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	UserID               uuid.UUID  `json:"user_id" db:"user_id"`
	PlanID               string     `json:"plan_id" db:"plan_id"`
	Status               string     `json:"status" db:"status"`
	StartDate            time.Time  `json:"start_date" db:"start_date"`
	EndDate              *time.Time `json:"end_date" db:"end_date"`
	PaymentCorrelationID *string    `json:"payment_correlation_id" db:"payment_correlation_id"`
	PreviousPlanID       *string    `json:"previous_plan_id" db:"previous_plan_id"`
	ScheduledPlanID      *string    `json:"scheduled_plan_id" db:"scheduled_plan_id"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether no further webhook-driven transition applies.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCancelled || s.Status == SubscriptionStatusExpired
}
