package repositories

import (
	"context"
	"time"

	"payflow/internal/models"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error)
	HasCurrentForUser(ctx context.Context, userID uuid.UUID) (bool, error)
	ListDueForDowngrade(ctx context.Context, asOf time.Time) ([]*models.Subscription, error)
	ListDueForExpiry(ctx context.Context, asOf time.Time) ([]*models.Subscription, error)
}

type subscriptionRepo struct {
	db Database
}

func NewSubscriptionRepo(db Database) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, status, start_date, end_date, payment_correlation_id, previous_plan_id, scheduled_plan_id, created_at, updated_at`

func (r *subscriptionRepo) Create(ctx context.Context, subscription *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, status, start_date, end_date, payment_correlation_id, previous_plan_id, scheduled_plan_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, subscription.ID, subscription.UserID, subscription.PlanID, subscription.Status, subscription.StartDate, subscription.EndDate, subscription.PaymentCorrelationID, subscription.PreviousPlanID, subscription.ScheduledPlanID)
	return err
}

func (r *subscriptionRepo) scanOne(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	subscription := &models.Subscription{}
	err := row.Scan(&subscription.ID, &subscription.UserID, &subscription.PlanID, &subscription.Status, &subscription.StartDate, &subscription.EndDate, &subscription.PaymentCorrelationID, &subscription.PreviousPlanID, &subscription.ScheduledPlanID, &subscription.CreatedAt, &subscription.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (r *subscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByIDForUpdate row-locks the subscription so concurrent webhook
// deliveries for the same subscription serialize.
func (r *subscriptionRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1
		FOR UPDATE
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *subscriptionRepo) Update(ctx context.Context, subscription *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $1, status = $2, start_date = $3, end_date = $4, payment_correlation_id = $5, previous_plan_id = $6, scheduled_plan_id = $7, updated_at = NOW()
		WHERE id = $8
	`
	_, err := r.db.Exec(ctx, query, subscription.PlanID, subscription.Status, subscription.StartDate, subscription.EndDate, subscription.PaymentCorrelationID, subscription.PreviousPlanID, subscription.ScheduledPlanID, subscription.ID)
	return err
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, userID, limit, offset)
}

// HasCurrentForUser reports whether the user already has a pending or active
// subscription. At most one subscription per user may be active at a time.
func (r *subscriptionRepo) HasCurrentForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND status IN ($2, $3)
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, userID, models.SubscriptionStatusPending, models.SubscriptionStatusActive).Scan(&exists)
	return exists, err
}

func (r *subscriptionRepo) ListDueForDowngrade(ctx context.Context, asOf time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1 AND scheduled_plan_id IS NOT NULL AND end_date IS NOT NULL AND end_date <= $2
		ORDER BY end_date
	`
	return r.list(ctx, query, models.SubscriptionStatusActive, asOf)
}

func (r *subscriptionRepo) ListDueForExpiry(ctx context.Context, asOf time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1 AND scheduled_plan_id IS NULL AND end_date IS NOT NULL AND end_date <= $2
		ORDER BY end_date
	`
	return r.list(ctx, query, models.SubscriptionStatusActive, asOf)
}

func (r *subscriptionRepo) list(ctx context.Context, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		subscription, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}
