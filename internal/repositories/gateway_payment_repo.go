package repositories

import (
	"context"

	"payflow/internal/models"

	"github.com/google/uuid"
)

type GatewayPaymentRepository interface {
	Create(ctx context.Context, payment *models.GatewayPayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GatewayPayment, error)
	UpdateOutcome(ctx context.Context, payment *models.GatewayPayment) error
	UpdateWebhookDelivery(ctx context.Context, payment *models.GatewayPayment) error
}

type gatewayPaymentRepo struct {
	db Database
}

func NewGatewayPaymentRepo(db Database) GatewayPaymentRepository {
	return &gatewayPaymentRepo{db: db}
}

const gatewayPaymentColumns = `id, external_reference, amount, currency, status, failure_reason, webhook_key, webhook_status, webhook_attempts, last_error, created_at, updated_at`

func (r *gatewayPaymentRepo) Create(ctx context.Context, payment *models.GatewayPayment) error {
	query := `
		INSERT INTO gateway_payments (id, external_reference, amount, currency, status, failure_reason, webhook_key, webhook_status, webhook_attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, payment.ID, payment.ExternalReference, payment.Amount, payment.Currency, payment.Status, payment.FailureReason, payment.WebhookKey, payment.WebhookStatus, payment.WebhookAttempts, payment.LastError)
	return err
}

func (r *gatewayPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.GatewayPayment, error) {
	query := `
		SELECT ` + gatewayPaymentColumns + `
		FROM gateway_payments
		WHERE id = $1
	`
	payment := &models.GatewayPayment{}
	err := r.db.QueryRow(ctx, query, id).Scan(&payment.ID, &payment.ExternalReference, &payment.Amount, &payment.Currency, &payment.Status, &payment.FailureReason, &payment.WebhookKey, &payment.WebhookStatus, &payment.WebhookAttempts, &payment.LastError, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *gatewayPaymentRepo) UpdateOutcome(ctx context.Context, payment *models.GatewayPayment) error {
	query := `
		UPDATE gateway_payments
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, payment.Status, payment.FailureReason, payment.ID)
	return err
}

func (r *gatewayPaymentRepo) UpdateWebhookDelivery(ctx context.Context, payment *models.GatewayPayment) error {
	query := `
		UPDATE gateway_payments
		SET webhook_status = $1, webhook_attempts = $2, last_error = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := r.db.Exec(ctx, query, payment.WebhookStatus, payment.WebhookAttempts, payment.LastError, payment.ID)
	return err
}
