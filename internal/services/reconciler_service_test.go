package services

import (
	"context"
	"testing"
	"time"

	"payflow/internal/common"
	"payflow/internal/models"
	"payflow/pkg/database"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ReconcilerServiceTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	cache   *MockCacheService
	service ReconcilerService
	subID   uuid.UUID
	ctx     context.Context
}

func (suite *ReconcilerServiceTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.cache = &MockCacheService{}
	suite.service = NewReconcilerService(database.NewTxExecutor(mock), suite.cache)
	suite.subID = uuid.New()
	suite.ctx = context.Background()
}

func (suite *ReconcilerServiceTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.cache.AssertExpectations(suite.T())
	suite.mock.Close()
}

func TestReconcilerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerServiceTestSuite))
}

func (suite *ReconcilerServiceTestSuite) event(status string) *models.WebhookEvent {
	event := &models.WebhookEvent{
		EventType:         models.EventTypePaymentOutcome,
		PaymentID:         "pay-" + uuid.New().String(),
		ExternalReference: suite.subID,
		Status:            status,
		Amount:            29.99,
		Currency:          "USD",
		Timestamp:         time.Now().UTC(),
	}
	if status == models.EventStatusFailed {
		reason := "Insufficient funds"
		event.FailureReason = &reason
	}
	return event
}

func (suite *ReconcilerServiceTestSuite) expectLockedSubscription(subscription *models.Subscription) {
	rows := pgxmock.NewRows([]string{"id", "user_id", "plan_id", "status", "start_date", "end_date", "payment_correlation_id", "previous_plan_id", "scheduled_plan_id", "created_at", "updated_at"}).
		AddRow(subscription.ID, subscription.UserID, subscription.PlanID, subscription.Status, subscription.StartDate, subscription.EndDate, subscription.PaymentCorrelationID, subscription.PreviousPlanID, subscription.ScheduledPlanID, subscription.CreatedAt, subscription.UpdatedAt)

	suite.mock.ExpectQuery(`FROM subscriptions\s+WHERE id = \$1\s+FOR UPDATE`).
		WithArgs(subscription.ID).
		WillReturnRows(rows)
}

func (suite *ReconcilerServiceTestSuite) expectPendingRecord(recordID uuid.UUID) {
	now := time.Now()
	rows := pgxmock.NewRows([]string{"id", "subscription_id", "amount", "currency", "status", "payment_correlation_id", "failure_reason", "created_at", "updated_at"}).
		AddRow(recordID, suite.subID, 29.99, "USD", models.PaymentStatusPending, nil, nil, now, now)

	suite.mock.ExpectQuery(`FROM payment_records\s+WHERE subscription_id = \$1 AND status = \$2`).
		WithArgs(suite.subID, models.PaymentStatusPending).
		WillReturnRows(rows)
}

func serializableOpts() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: pgx.Serializable}
}

func (suite *ReconcilerServiceTestSuite) TestApply_SuccessActivatesPending() {
	event := suite.event(models.EventStatusSuccess)
	pending := &models.Subscription{
		ID:     suite.subID,
		UserID: uuid.New(),
		PlanID: "premium",
		Status: models.SubscriptionStatusPending,
	}
	recordID := uuid.New()

	suite.mock.ExpectBeginTx(serializableOpts())
	suite.expectLockedSubscription(pending)
	suite.mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(pending.PlanID, models.SubscriptionStatusActive, pending.StartDate, pending.EndDate, &event.PaymentID, (*string)(nil), pending.ScheduledPlanID, pending.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.expectPendingRecord(recordID)
	suite.mock.ExpectExec(`UPDATE payment_records`).
		WithArgs(29.99, "USD", models.PaymentStatusSuccess, &event.PaymentID, event.FailureReason, recordID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectCommit()

	suite.cache.On("DeleteSubscription", suite.ctx, suite.subID).Return(nil)

	result, err := suite.service.Apply(suite.ctx, event)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.subID, result.SubscriptionID)
	assert.Equal(suite.T(), models.SubscriptionStatusActive, result.NewStatus)
	assert.False(suite.T(), result.ProcessedAt.IsZero())
}

func (suite *ReconcilerServiceTestSuite) TestApply_FailureCancelsPending() {
	event := suite.event(models.EventStatusFailed)
	pending := &models.Subscription{
		ID:     suite.subID,
		UserID: uuid.New(),
		PlanID: "basic",
		Status: models.SubscriptionStatusPending,
	}
	recordID := uuid.New()

	suite.mock.ExpectBeginTx(serializableOpts())
	suite.expectLockedSubscription(pending)
	suite.mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(pending.PlanID, models.SubscriptionStatusCancelled, pending.StartDate, pending.EndDate, &event.PaymentID, pending.PreviousPlanID, pending.ScheduledPlanID, pending.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.expectPendingRecord(recordID)
	suite.mock.ExpectExec(`UPDATE payment_records`).
		WithArgs(29.99, "USD", models.PaymentStatusFailed, &event.PaymentID, event.FailureReason, recordID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectCommit()

	suite.cache.On("DeleteSubscription", suite.ctx, suite.subID).Return(nil)

	result, err := suite.service.Apply(suite.ctx, event)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionStatusCancelled, result.NewStatus)
}

func (suite *ReconcilerServiceTestSuite) TestApply_UpgradeChargeSettlesActiveSubscription() {
	event := suite.event(models.EventStatusSuccess)
	firstCharge := "pay-original"
	previous := "basic"
	// An in-flight upgrade: still active, previous plan marked, correlated
	// to the original charge rather than the upgrade's.
	upgrading := &models.Subscription{
		ID:                   suite.subID,
		UserID:               uuid.New(),
		PlanID:               "premium",
		Status:               models.SubscriptionStatusActive,
		PaymentCorrelationID: &firstCharge,
		PreviousPlanID:       &previous,
	}
	recordID := uuid.New()

	suite.mock.ExpectBeginTx(serializableOpts())
	suite.expectLockedSubscription(upgrading)
	// Stays active; the previous plan marker clears and the correlation
	// moves to the upgrade's payment.
	suite.mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(upgrading.PlanID, models.SubscriptionStatusActive, upgrading.StartDate, upgrading.EndDate, &event.PaymentID, (*string)(nil), upgrading.ScheduledPlanID, upgrading.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.expectPendingRecord(recordID)
	suite.mock.ExpectExec(`UPDATE payment_records`).
		WithArgs(29.99, "USD", models.PaymentStatusSuccess, &event.PaymentID, event.FailureReason, recordID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectCommit()

	suite.cache.On("DeleteSubscription", suite.ctx, suite.subID).Return(nil)

	result, err := suite.service.Apply(suite.ctx, event)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionStatusActive, result.NewStatus)
}

func (suite *ReconcilerServiceTestSuite) TestApply_UnknownReferenceIs404() {
	event := suite.event(models.EventStatusSuccess)

	suite.mock.ExpectBeginTx(serializableOpts())
	suite.mock.ExpectQuery(`FROM subscriptions`).
		WithArgs(suite.subID).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectRollback()

	result, err := suite.service.Apply(suite.ctx, event)
	assert.Nil(suite.T(), result)

	derr, ok := common.AsDomainError(err)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), common.CodeSubscriptionNotFound, derr.Code)
	assert.Equal(suite.T(), 404, derr.Status())
}

func (suite *ReconcilerServiceTestSuite) TestApply_DuplicateDeliveryIsNoOp() {
	event := suite.event(models.EventStatusSuccess)
	correlation := event.PaymentID
	active := &models.Subscription{
		ID:                   suite.subID,
		UserID:               uuid.New(),
		PlanID:               "premium",
		Status:               models.SubscriptionStatusActive,
		PaymentCorrelationID: &correlation,
	}

	// Already applied: no updates issued, transaction still commits cleanly.
	suite.mock.ExpectBeginTx(serializableOpts())
	suite.expectLockedSubscription(active)
	suite.mock.ExpectCommit()

	suite.cache.On("DeleteSubscription", suite.ctx, suite.subID).Return(nil)

	result, err := suite.service.Apply(suite.ctx, event)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionStatusActive, result.NewStatus)
}

func (suite *ReconcilerServiceTestSuite) TestApply_TerminalStateAbsorbsLateEvent() {
	event := suite.event(models.EventStatusSuccess)
	cancelled := &models.Subscription{
		ID:     suite.subID,
		UserID: uuid.New(),
		PlanID: "basic",
		Status: models.SubscriptionStatusCancelled,
	}

	suite.mock.ExpectBeginTx(serializableOpts())
	suite.expectLockedSubscription(cancelled)
	suite.mock.ExpectCommit()

	suite.cache.On("DeleteSubscription", suite.ctx, suite.subID).Return(nil)

	result, err := suite.service.Apply(suite.ctx, event)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionStatusCancelled, result.NewStatus)
}

func (suite *ReconcilerServiceTestSuite) TestApply_NoPendingRecordCreatesSettledOne() {
	event := suite.event(models.EventStatusFailed)
	pending := &models.Subscription{
		ID:     suite.subID,
		UserID: uuid.New(),
		PlanID: "basic",
		Status: models.SubscriptionStatusPending,
	}

	suite.mock.ExpectBeginTx(serializableOpts())
	suite.expectLockedSubscription(pending)
	suite.mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(pending.PlanID, models.SubscriptionStatusCancelled, pending.StartDate, pending.EndDate, &event.PaymentID, pending.PreviousPlanID, pending.ScheduledPlanID, pending.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectQuery(`FROM payment_records`).
		WithArgs(suite.subID, models.PaymentStatusPending).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectExec(`INSERT INTO payment_records`).
		WithArgs(pgxmock.AnyArg(), suite.subID, 29.99, "USD", models.PaymentStatusFailed, &event.PaymentID, event.FailureReason).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectCommit()

	suite.cache.On("DeleteSubscription", suite.ctx, suite.subID).Return(nil)

	result, err := suite.service.Apply(suite.ctx, event)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionStatusCancelled, result.NewStatus)
}

func (suite *ReconcilerServiceTestSuite) TestApply_InvalidEventRejected() {
	event := suite.event(models.EventStatusSuccess)
	event.Status = "unknown"

	result, err := suite.service.Apply(suite.ctx, event)
	assert.Nil(suite.T(), result)

	derr, ok := common.AsDomainError(err)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), common.CodeValidation, derr.Code)
}
