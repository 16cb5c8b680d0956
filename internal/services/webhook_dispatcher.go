package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"payflow/internal/middleware"
	"payflow/internal/models"
	"payflow/internal/signature"
)

// WebhookDispatcher delivers a payment-outcome event with bounded retries.
// Every attempt signs the same payload bytes and reuses the caller's
// idempotency key, so the receiver can safely dedupe repeats.
type WebhookDispatcher interface {
	Send(ctx context.Context, event *models.WebhookEvent, idempotencyKey string) (int, error)
}

type webhookDispatcher struct {
	targetURL   string
	codec       *signature.Codec
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
}

func NewWebhookDispatcher(targetURL string, codec *signature.Codec, timeout time.Duration, maxAttempts int, baseDelay time.Duration) WebhookDispatcher {
	return &webhookDispatcher{
		targetURL:   targetURL,
		codec:       codec,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Send attempts delivery up to maxAttempts times with exponential backoff and
// jitter between attempts. 4xx responses other than 408/429 are permanent
// failures and stop the loop; 5xx and transport errors are retried. The
// returned count is how many attempts were made.
func (d *webhookDispatcher) Send(ctx context.Context, event *models.WebhookEvent, idempotencyKey string) (int, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal webhook event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := d.backoff(attempt)
			log.Printf("webhook delivery attempt %d/%d for payment %s in %v: %v", attempt, d.maxAttempts, event.PaymentID, delay, lastErr)
			select {
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			case <-time.After(delay):
			}
		}

		permanent, err := d.attempt(ctx, payload, idempotencyKey)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if permanent {
			return attempt, fmt.Errorf("webhook delivery failed permanently: %w", err)
		}
	}
	return d.maxAttempts, fmt.Errorf("webhook delivery exhausted %d attempts: %w", d.maxAttempts, lastErr)
}

func (d *webhookDispatcher) attempt(ctx context.Context, payload []byte, idempotencyKey string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.targetURL, bytes.NewReader(payload))
	if err != nil {
		return true, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderWebhookSignature, d.codec.Sign(payload))
	req.Header.Set(middleware.HeaderIdempotencyKey, idempotencyKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}

	err = fmt.Errorf("webhook target responded %d", resp.StatusCode)
	if isPermanentStatus(resp.StatusCode) {
		return true, err
	}
	return false, err
}

func (d *webhookDispatcher) backoff(attempt int) time.Duration {
	delay := d.baseDelay * time.Duration(1<<uint(attempt-2))
	jitter := time.Duration(rand.Int63n(int64(d.baseDelay)/2 + 1))
	return delay + jitter
}

// isPermanentStatus classifies responses that no amount of retrying will fix:
// the receiver understood the request and rejected it.
func isPermanentStatus(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	return status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}
