package repositories

import (
	"context"
	"errors"

	"payflow/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PaymentRecordRepository interface {
	Create(ctx context.Context, record *models.PaymentRecord) error
	Update(ctx context.Context, record *models.PaymentRecord) error
	GetLatestPending(ctx context.Context, subscriptionID uuid.UUID) (*models.PaymentRecord, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*models.PaymentRecord, error)
}

type paymentRecordRepo struct {
	db Database
}

func NewPaymentRecordRepo(db Database) PaymentRecordRepository {
	return &paymentRecordRepo{db: db}
}

const paymentRecordColumns = `id, subscription_id, amount, currency, status, payment_correlation_id, failure_reason, created_at, updated_at`

func (r *paymentRecordRepo) Create(ctx context.Context, record *models.PaymentRecord) error {
	query := `
		INSERT INTO payment_records (id, subscription_id, amount, currency, status, payment_correlation_id, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, record.ID, record.SubscriptionID, record.Amount, record.Currency, record.Status, record.PaymentCorrelationID, record.FailureReason)
	return err
}

func (r *paymentRecordRepo) Update(ctx context.Context, record *models.PaymentRecord) error {
	query := `
		UPDATE payment_records
		SET amount = $1, currency = $2, status = $3, payment_correlation_id = $4, failure_reason = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query, record.Amount, record.Currency, record.Status, record.PaymentCorrelationID, record.FailureReason, record.ID)
	return err
}

// GetLatestPending returns the most recent pending record for the
// subscription, or nil when none is outstanding.
func (r *paymentRecordRepo) GetLatestPending(ctx context.Context, subscriptionID uuid.UUID) (*models.PaymentRecord, error) {
	query := `
		SELECT ` + paymentRecordColumns + `
		FROM payment_records
		WHERE subscription_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	record := &models.PaymentRecord{}
	err := r.db.QueryRow(ctx, query, subscriptionID, models.PaymentStatusPending).Scan(&record.ID, &record.SubscriptionID, &record.Amount, &record.Currency, &record.Status, &record.PaymentCorrelationID, &record.FailureReason, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *paymentRecordRepo) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*models.PaymentRecord, error) {
	query := `
		SELECT ` + paymentRecordColumns + `
		FROM payment_records
		WHERE subscription_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		record := &models.PaymentRecord{}
		if err := rows.Scan(&record.ID, &record.SubscriptionID, &record.Amount, &record.Currency, &record.Status, &record.PaymentCorrelationID, &record.FailureReason, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
