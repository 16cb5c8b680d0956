package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"payflow/internal/common"
	"payflow/internal/models"
	"payflow/internal/repositories"

	"github.com/google/uuid"
)

// SettlementOutcome is the result of settling a charge.
type SettlementOutcome struct {
	Success       bool
	FailureReason string
}

// SettlementFunc decides the outcome of a payment. The default simulator
// flips a coin; tests inject deterministic outcomes.
type SettlementFunc func(payment *models.GatewayPayment) SettlementOutcome

// CoinFlipSettlement is the default simulator behaviour.
func CoinFlipSettlement(_ *models.GatewayPayment) SettlementOutcome {
	if rand.Intn(2) == 0 {
		return SettlementOutcome{Success: false, FailureReason: "Insufficient funds"}
	}
	return SettlementOutcome{Success: true}
}

// SettlementResult is what the background settlement task reports back.
// Delivery failures land here instead of disappearing into a bare goroutine.
type SettlementResult struct {
	PaymentID uuid.UUID
	Status    string
	Delivered bool
	Attempts  int
	Err       error
}

// PaymentService is the gateway simulator: it records initiated charges,
// settles them on a background task and dispatches the signed outcome
// webhook. The payment's own settled state is never rolled back when
// delivery fails; the webhook can be resent manually.
type PaymentService interface {
	Initiate(ctx context.Context, req *InitiatePaymentRequest) (*models.GatewayPayment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.GatewayPayment, error)
	ResendWebhook(ctx context.Context, id uuid.UUID) (*models.GatewayPayment, error)
	Results() <-chan SettlementResult
}

type paymentService struct {
	payments   repositories.GatewayPaymentRepository
	dispatcher WebhookDispatcher
	settle     SettlementFunc
	results    chan SettlementResult
}

func NewPaymentService(payments repositories.GatewayPaymentRepository, dispatcher WebhookDispatcher, settle SettlementFunc) PaymentService {
	if settle == nil {
		settle = CoinFlipSettlement
	}
	return &paymentService{
		payments:   payments,
		dispatcher: dispatcher,
		settle:     settle,
		results:    make(chan SettlementResult, 64),
	}
}

// Results exposes the settlement task's failure channel. Callers drain it
// into a log sink (see StartResultLogger).
func (s *paymentService) Results() <-chan SettlementResult {
	return s.results
}

// StartResultLogger drains settlement results into the log until ctx ends.
func StartResultLogger(ctx context.Context, results <-chan SettlementResult) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res := <-results:
				if res.Err != nil {
					log.Printf("settlement for payment %s (%s): webhook NOT delivered after %d attempts: %v", res.PaymentID, res.Status, res.Attempts, res.Err)
				} else {
					log.Printf("settlement for payment %s (%s): webhook delivered in %d attempt(s)", res.PaymentID, res.Status, res.Attempts)
				}
			}
		}
	}()
}

func (s *paymentService) Initiate(ctx context.Context, req *InitiatePaymentRequest) (*models.GatewayPayment, error) {
	problems := make(map[string]string)
	if req.ExternalReference == uuid.Nil {
		problems["external_reference"] = "external_reference is required"
	}
	if req.Amount <= 0 {
		problems["amount"] = "amount must be positive"
	}
	if req.Currency == "" {
		problems["currency"] = "currency is required"
	}
	if len(problems) > 0 {
		return nil, common.NewValidationError("Invalid payment initiation request", problems)
	}

	payment := &models.GatewayPayment{
		ID:                uuid.New(),
		ExternalReference: req.ExternalReference,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            models.PaymentStatusPending,
		// Derived once; reused across every delivery attempt so the
		// receiver can dedupe.
		WebhookKey:    "wh-" + uuid.New().String(),
		WebhookStatus: models.WebhookStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create gateway payment: %w", err)
	}

	go s.settleAndNotify(payment)

	return payment, nil
}

func (s *paymentService) GetByID(ctx context.Context, id uuid.UUID) (*models.GatewayPayment, error) {
	return s.payments.GetByID(ctx, id)
}

// ResendWebhook re-dispatches the outcome event for a settled payment. This
// is the operator remediation path once the automatic retry budget is spent.
func (s *paymentService) ResendWebhook(ctx context.Context, id uuid.UUID) (*models.GatewayPayment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusPending {
		return nil, common.NewStateConflictError(common.CodeSubscriptionNotActive, "Payment has not settled yet")
	}

	s.deliver(ctx, payment)
	return payment, nil
}

// settleAndNotify runs detached from the initiating request. The request
// context is gone by the time this runs, so delivery gets its own.
func (s *paymentService) settleAndNotify(payment *models.GatewayPayment) {
	ctx := context.Background()

	outcome := s.settle(payment)
	if outcome.Success {
		payment.Status = models.PaymentStatusSuccess
	} else {
		payment.Status = models.PaymentStatusFailed
		reason := outcome.FailureReason
		payment.FailureReason = &reason
	}
	if err := s.payments.UpdateOutcome(ctx, payment); err != nil {
		s.report(SettlementResult{PaymentID: payment.ID, Status: payment.Status, Err: fmt.Errorf("failed to record settlement: %w", err)})
		return
	}

	s.deliver(ctx, payment)
}

func (s *paymentService) deliver(ctx context.Context, payment *models.GatewayPayment) {
	event := s.buildEvent(payment)

	attempts, err := s.dispatcher.Send(ctx, event, payment.WebhookKey)
	payment.WebhookAttempts += attempts
	if err != nil {
		payment.WebhookStatus = models.WebhookStatusFailed
		msg := err.Error()
		payment.LastError = &msg
	} else {
		payment.WebhookStatus = models.WebhookStatusDelivered
		payment.LastError = nil
	}
	if updateErr := s.payments.UpdateWebhookDelivery(ctx, payment); updateErr != nil {
		log.Printf("failed to record webhook delivery state for payment %s: %v", payment.ID, updateErr)
	}

	s.report(SettlementResult{
		PaymentID: payment.ID,
		Status:    payment.Status,
		Delivered: err == nil,
		Attempts:  attempts,
		Err:       err,
	})
}

func (s *paymentService) buildEvent(payment *models.GatewayPayment) *models.WebhookEvent {
	status := models.EventStatusSuccess
	if payment.Status == models.PaymentStatusFailed {
		status = models.EventStatusFailed
	}
	return &models.WebhookEvent{
		EventType:         models.EventTypePaymentOutcome,
		PaymentID:         payment.ID.String(),
		ExternalReference: payment.ExternalReference,
		Status:            status,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		Timestamp:         time.Now().UTC(),
		FailureReason:     payment.FailureReason,
	}
}

func (s *paymentService) report(result SettlementResult) {
	select {
	case s.results <- result:
	default:
		// Channel full; don't block settlement on a slow sink.
		log.Printf("settlement result dropped for payment %s: %+v", result.PaymentID, result.Err)
	}
}
