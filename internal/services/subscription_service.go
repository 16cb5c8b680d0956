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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriptionCacheTTL = 5 * time.Minute

// billingPeriod is the fixed cycle length of the monthly catalog.
const billingPeriod = 30 * 24 * time.Hour

type CreateSubscriptionRequest struct {
	UserID uuid.UUID `json:"user_id"`
	PlanID string    `json:"plan_id"`
}

type ChangePlanRequest struct {
	NewPlanID string `json:"new_plan_id"`
}

// SubscriptionDetail is a subscription with its payment history attached.
type SubscriptionDetail struct {
	Subscription *models.Subscription    `json:"subscription"`
	Payments     []*models.PaymentRecord `json:"payments"`
}

// UpgradeResult reports the plan change plus the prorated charge initiated
// for it.
type UpgradeResult struct {
	Subscription   *models.Subscription `json:"subscription"`
	ProratedAmount float64              `json:"prorated_amount"`
}

type SubscriptionService interface {
	Create(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error)
	GetByID(ctx context.Context, id uuid.UUID) (*SubscriptionDetail, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	Upgrade(ctx context.Context, id uuid.UUID, req *ChangePlanRequest) (*UpgradeResult, error)
	Downgrade(ctx context.Context, id uuid.UUID, req *ChangePlanRequest) (*models.Subscription, error)

	ApplyScheduledDowngrades(ctx context.Context, asOf time.Time) (int, error)
	ExpireLapsed(ctx context.Context, asOf time.Time) (int, error)
}

type subscriptionService struct {
	subscriptions repositories.SubscriptionRepository
	records       repositories.PaymentRecordRepository
	gateway       PaymentGatewayClient
	cache         caching.CacheService
}

func NewSubscriptionService(subscriptions repositories.SubscriptionRepository, records repositories.PaymentRecordRepository, gateway PaymentGatewayClient, cache caching.CacheService) SubscriptionService {
	return &subscriptionService{
		subscriptions: subscriptions,
		records:       records,
		gateway:       gateway,
		cache:         cache,
	}
}

// Create opens a pending subscription and kicks off its first charge. The
// subscription stays pending until the payment outcome webhook arrives.
func (s *subscriptionService) Create(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error) {
	problems := make(map[string]string)
	if req.UserID == uuid.Nil {
		problems["user_id"] = "user_id is required"
	}
	plan, ok := models.PlanByID(req.PlanID)
	if !ok {
		problems["plan_id"] = "unknown plan"
	}
	if len(problems) > 0 {
		return nil, common.NewValidationError("Invalid subscription request", problems)
	}

	exists, err := s.subscriptions.HasCurrentForUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.NewConflictError(common.CodeSubscriptionExists, "User already has a pending or active subscription", nil)
	}

	now := time.Now().UTC()
	endDate := now.Add(billingPeriod)
	subscription := &models.Subscription{
		ID:        uuid.New(),
		UserID:    req.UserID,
		PlanID:    plan.ID,
		Status:    models.SubscriptionStatusPending,
		StartDate: now,
		EndDate:   &endDate,
	}
	if err := s.subscriptions.Create(ctx, subscription); err != nil {
		return nil, err
	}

	if err := s.charge(ctx, subscription, plan.Amount, plan.Currency); err != nil {
		return nil, err
	}
	return subscription, nil
}

// GetByID reads through the cache; the payment history always comes from the
// store.
func (s *subscriptionService) GetByID(ctx context.Context, id uuid.UUID) (*SubscriptionDetail, error) {
	subscription, err := s.cache.GetSubscription(ctx, id)
	if err != nil {
		log.Printf("cache read failed for subscription %s: %v", id, err)
	}
	if subscription == nil {
		subscription, err = s.subscriptions.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, common.NewNotFoundError(common.CodeSubscriptionNotFound, "Subscription not found")
			}
			return nil, err
		}
		if err := s.cache.SetSubscription(ctx, subscription, subscriptionCacheTTL); err != nil {
			log.Printf("cache write failed for subscription %s: %v", id, err)
		}
	}

	payments, err := s.records.ListBySubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SubscriptionDetail{Subscription: subscription, Payments: payments}, nil
}

func (s *subscriptionService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.subscriptions.ListByUser(ctx, userID, limit, offset)
}

// Cancel takes effect immediately. Cancelling an already terminal
// subscription is an error rather than a no-op so the caller learns nothing
// happened.
func (s *subscriptionService) Cancel(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription.IsTerminal() {
		return nil, common.NewStateConflictError(common.CodeSubscriptionNotActive, "Subscription is already "+subscription.Status)
	}

	subscription.Status = models.SubscriptionStatusCancelled
	subscription.ScheduledPlanID = nil
	if err := s.subscriptions.Update(ctx, subscription); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return subscription, nil
}

// Upgrade moves an active subscription to a pricier plan immediately,
// charging the prorated price difference. The subscription stays active with
// previous_plan_id set while the charge is in flight; the payment outcome
// webhook clears the marker on success or cancels on failure.
func (s *subscriptionService) Upgrade(ctx context.Context, id uuid.UUID, req *ChangePlanRequest) (*UpgradeResult, error) {
	subscription, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription.Status != models.SubscriptionStatusActive {
		return nil, common.NewStateConflictError(common.CodeSubscriptionNotActive, "Only active subscriptions can change plans")
	}

	currentPlan, newPlan, err := s.resolvePlans(subscription.PlanID, req.NewPlanID)
	if err != nil {
		return nil, err
	}
	if newPlan.Amount <= currentPlan.Amount {
		return nil, common.NewStateConflictError(common.CodeInvalidUpgrade, "Target plan must be priced above the current plan; use downgrade instead")
	}

	amount := ProratedAmount(currentPlan.Amount, newPlan.Amount)

	previous := subscription.PlanID
	subscription.PlanID = newPlan.ID
	subscription.PreviousPlanID = &previous
	subscription.ScheduledPlanID = nil
	if err := s.subscriptions.Update(ctx, subscription); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	if err := s.charge(ctx, subscription, amount, newPlan.Currency); err != nil {
		return nil, err
	}
	return &UpgradeResult{Subscription: subscription, ProratedAmount: amount}, nil
}

// Downgrade schedules the cheaper plan for the end of the current period. No
// charge happens now; the scheduled plan job applies it at the boundary.
func (s *subscriptionService) Downgrade(ctx context.Context, id uuid.UUID, req *ChangePlanRequest) (*models.Subscription, error) {
	subscription, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription.Status != models.SubscriptionStatusActive {
		return nil, common.NewStateConflictError(common.CodeSubscriptionNotActive, "Only active subscriptions can change plans")
	}

	currentPlan, newPlan, err := s.resolvePlans(subscription.PlanID, req.NewPlanID)
	if err != nil {
		return nil, err
	}
	if newPlan.Amount >= currentPlan.Amount {
		return nil, common.NewStateConflictError(common.CodeInvalidDowngrade, "Target plan must be priced below the current plan; use upgrade instead")
	}

	scheduled := newPlan.ID
	subscription.ScheduledPlanID = &scheduled
	if err := s.subscriptions.Update(ctx, subscription); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return subscription, nil
}

// ApplyScheduledDowngrades flips subscriptions whose billing period ended
// onto their scheduled plan and starts the next period. Runs from the
// scheduler; partial progress is fine, stragglers get picked up next tick.
func (s *subscriptionService) ApplyScheduledDowngrades(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.subscriptions.ListDueForDowngrade(ctx, asOf)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, subscription := range due {
		previous := subscription.PlanID
		subscription.PlanID = *subscription.ScheduledPlanID
		subscription.PreviousPlanID = &previous
		subscription.ScheduledPlanID = nil
		subscription.StartDate = asOf
		endDate := asOf.Add(billingPeriod)
		subscription.EndDate = &endDate
		if err := s.subscriptions.Update(ctx, subscription); err != nil {
			log.Printf("scheduled downgrade failed for subscription %s: %v", subscription.ID, err)
			continue
		}
		s.invalidate(ctx, subscription.ID)
		applied++
	}
	return applied, nil
}

// ExpireLapsed marks active subscriptions past their end date as expired.
func (s *subscriptionService) ExpireLapsed(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.subscriptions.ListDueForExpiry(ctx, asOf)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, subscription := range due {
		subscription.Status = models.SubscriptionStatusExpired
		if err := s.subscriptions.Update(ctx, subscription); err != nil {
			log.Printf("expiry failed for subscription %s: %v", subscription.ID, err)
			continue
		}
		s.invalidate(ctx, subscription.ID)
		expired++
	}
	return expired, nil
}

func (s *subscriptionService) load(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.subscriptions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError(common.CodeSubscriptionNotFound, "Subscription not found")
		}
		return nil, err
	}
	return subscription, nil
}

func (s *subscriptionService) resolvePlans(currentID, newID string) (models.PlanConfig, models.PlanConfig, error) {
	currentPlan, ok := models.PlanByID(currentID)
	if !ok {
		return models.PlanConfig{}, models.PlanConfig{}, common.NewValidationError("Invalid plan change", map[string]string{"plan_id": "current plan is no longer in the catalog"})
	}
	newPlan, ok := models.PlanByID(newID)
	if !ok {
		return models.PlanConfig{}, models.PlanConfig{}, common.NewValidationError("Invalid plan change", map[string]string{"new_plan_id": "unknown plan"})
	}
	if newPlan.ID == currentPlan.ID {
		return models.PlanConfig{}, models.PlanConfig{}, common.NewValidationError("Invalid plan change", map[string]string{"new_plan_id": "already on this plan"})
	}
	return currentPlan, newPlan, nil
}

// charge records a pending payment and initiates it with the gateway in the
// background. The initiation key is derived from the payment record, so a
// crashed-and-retried initiation cannot double-charge.
func (s *subscriptionService) charge(ctx context.Context, subscription *models.Subscription, amount float64, currency string) error {
	record := &models.PaymentRecord{
		ID:             uuid.New(),
		SubscriptionID: subscription.ID,
		Amount:         amount,
		Currency:       currency,
		Status:         models.PaymentStatusPending,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return err
	}

	go func() {
		// Detached from the request; the gateway client has its own timeout.
		initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp, err := s.gateway.InitiatePayment(initCtx, &InitiatePaymentRequest{
			ExternalReference: subscription.ID,
			Amount:            amount,
			Currency:          currency,
		}, "init-"+record.ID.String())
		if err != nil {
			log.Printf("payment initiation failed for subscription %s (record %s): %v", subscription.ID, record.ID, err)
			return
		}
		log.Printf("payment %s initiated for subscription %s (%s %.2f)", resp.PaymentID, subscription.ID, currency, amount)
	}()
	return nil
}

func (s *subscriptionService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.DeleteSubscription(ctx, id); err != nil {
		log.Printf("cache invalidation failed for subscription %s: %v", id, err)
	}
}
