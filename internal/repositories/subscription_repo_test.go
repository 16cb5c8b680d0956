package repositories

import (
	"context"
	"testing"
	"time"

	"payflow/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SubscriptionRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    SubscriptionRepository
	userID  uuid.UUID
	subID   uuid.UUID
	context context.Context
}

func (suite *SubscriptionRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewSubscriptionRepo(mock)
	suite.userID = uuid.New()
	suite.subID = uuid.New()
	suite.context = context.Background()
}

func (suite *SubscriptionRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestSubscriptionRepoTestSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionRepoTestSuite))
}

func (suite *SubscriptionRepoTestSuite) subscriptionRows(subscription *models.Subscription) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "user_id", "plan_id", "status", "start_date", "end_date", "payment_correlation_id", "previous_plan_id", "scheduled_plan_id", "created_at", "updated_at"}).
		AddRow(subscription.ID, subscription.UserID, subscription.PlanID, subscription.Status, subscription.StartDate, subscription.EndDate, subscription.PaymentCorrelationID, subscription.PreviousPlanID, subscription.ScheduledPlanID, subscription.CreatedAt, subscription.UpdatedAt)
}

func (suite *SubscriptionRepoTestSuite) TestCreate_Success() {
	now := time.Now()
	endDate := now.Add(30 * 24 * time.Hour)
	subscription := &models.Subscription{
		ID:        suite.subID,
		UserID:    suite.userID,
		PlanID:    "basic",
		Status:    models.SubscriptionStatusPending,
		StartDate: now,
		EndDate:   &endDate,
	}

	suite.mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(subscription.ID, subscription.UserID, subscription.PlanID, subscription.Status, subscription.StartDate, subscription.EndDate, subscription.PaymentCorrelationID, subscription.PreviousPlanID, subscription.ScheduledPlanID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Create(suite.context, subscription)
	assert.NoError(suite.T(), err)
}

func (suite *SubscriptionRepoTestSuite) TestGetByID_Success() {
	subscription := &models.Subscription{
		ID:     suite.subID,
		UserID: suite.userID,
		PlanID: "premium",
		Status: models.SubscriptionStatusActive,
	}

	suite.mock.ExpectQuery(`FROM subscriptions\s+WHERE id = \$1`).
		WithArgs(suite.subID).
		WillReturnRows(suite.subscriptionRows(subscription))

	got, err := suite.repo.GetByID(suite.context, suite.subID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.subID, got.ID)
	assert.Equal(suite.T(), "premium", got.PlanID)
	assert.Equal(suite.T(), models.SubscriptionStatusActive, got.Status)
}

func (suite *SubscriptionRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(`FROM subscriptions`).
		WithArgs(suite.subID).
		WillReturnError(pgx.ErrNoRows)

	got, err := suite.repo.GetByID(suite.context, suite.subID)
	assert.ErrorIs(suite.T(), err, pgx.ErrNoRows)
	assert.Nil(suite.T(), got)
}

func (suite *SubscriptionRepoTestSuite) TestGetByIDForUpdate_Locks() {
	subscription := &models.Subscription{
		ID:     suite.subID,
		UserID: suite.userID,
		PlanID: "basic",
		Status: models.SubscriptionStatusPending,
	}

	suite.mock.ExpectQuery(`FROM subscriptions\s+WHERE id = \$1\s+FOR UPDATE`).
		WithArgs(suite.subID).
		WillReturnRows(suite.subscriptionRows(subscription))

	got, err := suite.repo.GetByIDForUpdate(suite.context, suite.subID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.subID, got.ID)
}

func (suite *SubscriptionRepoTestSuite) TestUpdate_Success() {
	correlation := "pay-123"
	subscription := &models.Subscription{
		ID:                   suite.subID,
		PlanID:               "premium",
		Status:               models.SubscriptionStatusActive,
		StartDate:            time.Now(),
		PaymentCorrelationID: &correlation,
	}

	suite.mock.ExpectExec(`UPDATE subscriptions\s+SET plan_id = \$1`).
		WithArgs(subscription.PlanID, subscription.Status, subscription.StartDate, subscription.EndDate, subscription.PaymentCorrelationID, subscription.PreviousPlanID, subscription.ScheduledPlanID, subscription.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.Update(suite.context, subscription)
	assert.NoError(suite.T(), err)
}

func (suite *SubscriptionRepoTestSuite) TestHasCurrentForUser_True() {
	suite.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(suite.userID, models.SubscriptionStatusPending, models.SubscriptionStatusActive).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := suite.repo.HasCurrentForUser(suite.context, suite.userID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), exists)
}

func (suite *SubscriptionRepoTestSuite) TestHasCurrentForUser_False() {
	suite.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(suite.userID, models.SubscriptionStatusPending, models.SubscriptionStatusActive).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := suite.repo.HasCurrentForUser(suite.context, suite.userID)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), exists)
}

func (suite *SubscriptionRepoTestSuite) TestListByUser() {
	first := &models.Subscription{ID: uuid.New(), UserID: suite.userID, PlanID: "premium", Status: models.SubscriptionStatusActive}
	second := &models.Subscription{ID: uuid.New(), UserID: suite.userID, PlanID: "basic", Status: models.SubscriptionStatusCancelled}

	rows := suite.subscriptionRows(first).
		AddRow(second.ID, second.UserID, second.PlanID, second.Status, second.StartDate, second.EndDate, second.PaymentCorrelationID, second.PreviousPlanID, second.ScheduledPlanID, second.CreatedAt, second.UpdatedAt)

	suite.mock.ExpectQuery(`FROM subscriptions\s+WHERE user_id = \$1\s+ORDER BY created_at DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs(suite.userID, 20, 0).
		WillReturnRows(rows)

	subscriptions, err := suite.repo.ListByUser(suite.context, suite.userID, 20, 0)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), subscriptions, 2)
	assert.Equal(suite.T(), first.ID, subscriptions[0].ID)
	assert.Equal(suite.T(), second.ID, subscriptions[1].ID)
}

func (suite *SubscriptionRepoTestSuite) TestListDueForDowngrade() {
	scheduled := "basic"
	asOf := time.Now()
	due := &models.Subscription{
		ID:              suite.subID,
		UserID:          suite.userID,
		PlanID:          "premium",
		Status:          models.SubscriptionStatusActive,
		ScheduledPlanID: &scheduled,
	}

	suite.mock.ExpectQuery(`scheduled_plan_id IS NOT NULL AND end_date IS NOT NULL AND end_date <= \$2`).
		WithArgs(models.SubscriptionStatusActive, asOf).
		WillReturnRows(suite.subscriptionRows(due))

	subscriptions, err := suite.repo.ListDueForDowngrade(suite.context, asOf)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), subscriptions, 1)
	assert.Equal(suite.T(), "basic", *subscriptions[0].ScheduledPlanID)
}

func (suite *SubscriptionRepoTestSuite) TestListDueForExpiry_Empty() {
	asOf := time.Now()

	suite.mock.ExpectQuery(`scheduled_plan_id IS NULL AND end_date IS NOT NULL AND end_date <= \$2`).
		WithArgs(models.SubscriptionStatusActive, asOf).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "plan_id", "status", "start_date", "end_date", "payment_correlation_id", "previous_plan_id", "scheduled_plan_id", "created_at", "updated_at"}))

	subscriptions, err := suite.repo.ListDueForExpiry(suite.context, asOf)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), subscriptions)
}
