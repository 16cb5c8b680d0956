package services

import (
	"context"
	"errors"
	"log"
	"time"

	"payflow/internal/caching"
	"payflow/internal/common"
	"payflow/internal/models"
	"payflow/internal/repositories"
	"payflow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReconcileResult describes the state the subscription landed in after the
// event was applied.
type ReconcileResult struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	NewStatus      string    `json:"new_status"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// ReconcilerService applies authenticated payment-outcome events to
// subscription state. Each event is applied in one serializable transaction:
// either the subscription flip and the payment record update both land, or
// neither does. Duplicate and late deliveries converge to no-ops.
type ReconcilerService interface {
	Apply(ctx context.Context, event *models.WebhookEvent) (*ReconcileResult, error)
}

type reconcilerService struct {
	exec  *database.TxExecutor
	cache caching.CacheService
}

func NewReconcilerService(exec *database.TxExecutor, cache caching.CacheService) ReconcilerService {
	return &reconcilerService{exec: exec, cache: cache}
}

func (s *reconcilerService) Apply(ctx context.Context, event *models.WebhookEvent) (*ReconcileResult, error) {
	if problems := event.Validate(); problems != nil {
		return nil, common.NewValidationError("Invalid webhook event", problems)
	}

	var result *ReconcileResult
	err := s.exec.Run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx pgx.Tx) error {
		subscriptions := repositories.NewSubscriptionRepo(tx)
		records := repositories.NewPaymentRecordRepo(tx)

		subscription, err := subscriptions.GetByIDForUpdate(ctx, event.ExternalReference)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewNotFoundError(common.CodeSubscriptionNotFound, "No subscription matches the event's external reference")
			}
			return err
		}

		changed, err := s.apply(ctx, subscriptions, records, subscription, event)
		if err != nil {
			return err
		}
		result = &ReconcileResult{
			SubscriptionID: subscription.ID,
			NewStatus:      subscription.Status,
			ProcessedAt:    time.Now().UTC(),
		}
		if !changed {
			log.Printf("webhook for payment %s on subscription %s: already reconciled, no-op", event.PaymentID, subscription.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Invalidate after commit; a stale read heals on the next miss.
	if err := s.cache.DeleteSubscription(ctx, result.SubscriptionID); err != nil {
		log.Printf("cache invalidation failed for subscription %s: %v", result.SubscriptionID, err)
	}
	return result, nil
}

// apply mutates the locked subscription per the event and reports whether any
// state actually changed. Terminal subscriptions and repeats of an already
// applied outcome are absorbed silently.
func (s *reconcilerService) apply(ctx context.Context, subscriptions repositories.SubscriptionRepository, records repositories.PaymentRecordRepository, subscription *models.Subscription, event *models.WebhookEvent) (bool, error) {
	if subscription.IsTerminal() {
		return false, nil
	}
	if subscription.PaymentCorrelationID != nil && *subscription.PaymentCorrelationID == event.PaymentID {
		return false, nil
	}

	correlation := event.PaymentID
	switch event.Status {
	case models.EventStatusSuccess:
		subscription.Status = models.SubscriptionStatusActive
		subscription.PaymentCorrelationID = &correlation
		subscription.PreviousPlanID = nil
	case models.EventStatusFailed:
		subscription.Status = models.SubscriptionStatusCancelled
		subscription.PaymentCorrelationID = &correlation
	}
	if err := subscriptions.Update(ctx, subscription); err != nil {
		return false, err
	}

	if err := s.settleRecord(ctx, records, subscription.ID, event); err != nil {
		return false, err
	}
	return true, nil
}

// settleRecord flips the outstanding pending record to the event's outcome.
// When no pending record exists (e.g. the event raced record creation or the
// record was settled out of band) a settled record is created from the event
// so the payment history stays complete.
func (s *reconcilerService) settleRecord(ctx context.Context, records repositories.PaymentRecordRepository, subscriptionID uuid.UUID, event *models.WebhookEvent) error {
	status := models.PaymentStatusSuccess
	if event.Status == models.EventStatusFailed {
		status = models.PaymentStatusFailed
	}
	correlation := event.PaymentID

	record, err := records.GetLatestPending(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if record == nil {
		return records.Create(ctx, &models.PaymentRecord{
			ID:                   uuid.New(),
			SubscriptionID:       subscriptionID,
			Amount:               event.Amount,
			Currency:             event.Currency,
			Status:               status,
			PaymentCorrelationID: &correlation,
			FailureReason:        event.FailureReason,
		})
	}

	record.Status = status
	record.PaymentCorrelationID = &correlation
	record.FailureReason = event.FailureReason
	return records.Update(ctx, record)
}
