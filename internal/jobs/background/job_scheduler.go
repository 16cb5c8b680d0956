package background

import (
	"context"
	"log"
	"sync"
	"time"

	"payflow/internal/repositories"
	"payflow/internal/services"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler manages the subscription service's background jobs: the
// idempotency record sweep, scheduled plan downgrades and subscription
// expiry.
type JobScheduler struct {
	scheduler       gocron.Scheduler
	idempotencyRepo repositories.IdempotencyRepository
	subscriptionSvc services.SubscriptionService
	jobs            map[string]gocron.Job
	mu              sync.RWMutex
}

func NewJobScheduler(idempotencyRepo repositories.IdempotencyRepository, subscriptionSvc services.SubscriptionService) *JobScheduler {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler:       scheduler,
		idempotencyRepo: idempotencyRepo,
		subscriptionSvc: subscriptionSvc,
		jobs:            make(map[string]gocron.Job),
	}

	js.registerJobs()

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs registers all background jobs
func (js *JobScheduler) registerJobs() {
	// Idempotency sweep - every hour. Expired records are already invisible
	// to lookups; the sweep just reclaims storage.
	sweepJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.sweepIdempotencyRecords),
		gocron.WithName("idempotency-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create idempotency sweep job: %v", err)
	} else {
		js.jobs["idempotency-sweep"] = sweepJob
	}

	// Scheduled downgrades - every 15 minutes
	downgradeJob, err := js.scheduler.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(js.applyScheduledDowngrades),
		gocron.WithName("scheduled-downgrades"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create scheduled downgrade job: %v", err)
	} else {
		js.jobs["scheduled-downgrades"] = downgradeJob
	}

	// Subscription expiry - every 15 minutes
	expiryJob, err := js.scheduler.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(js.expireLapsedSubscriptions),
		gocron.WithName("subscription-expiry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create expiry job: %v", err)
	} else {
		js.jobs["subscription-expiry"] = expiryJob
	}

	log.Printf("Registered %d background jobs", len(js.jobs))
}

func (js *JobScheduler) sweepIdempotencyRecords() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := js.idempotencyRepo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Idempotency sweep failed: %v", err)
		return err
	}
	if removed > 0 {
		log.Printf("Idempotency sweep removed %d expired records", removed)
	}
	return nil
}

func (js *JobScheduler) applyScheduledDowngrades() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	applied, err := js.subscriptionSvc.ApplyScheduledDowngrades(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Scheduled downgrade pass failed: %v", err)
		return err
	}
	if applied > 0 {
		log.Printf("Applied %d scheduled downgrades", applied)
	}
	return nil
}

func (js *JobScheduler) expireLapsedSubscriptions() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := js.subscriptionSvc.ExpireLapsed(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Expiry pass failed: %v", err)
		return err
	}
	if expired > 0 {
		log.Printf("Expired %d lapsed subscriptions", expired)
	}
	return nil
}
