package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"payflow/internal/middleware"
	"payflow/internal/models"
	"payflow/internal/signature"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testEvent() *models.WebhookEvent {
	return &models.WebhookEvent{
		EventType:         models.EventTypePaymentOutcome,
		PaymentID:         uuid.New().String(),
		ExternalReference: uuid.New(),
		Status:            models.EventStatusSuccess,
		Amount:            29.99,
		Currency:          "USD",
		Timestamp:         time.Now().UTC(),
	}
}

func newTestDispatcher(targetURL string, codec *signature.Codec) WebhookDispatcher {
	return NewWebhookDispatcher(targetURL, codec, 2*time.Second, 3, 5*time.Millisecond)
}

func TestSend_Success(t *testing.T) {
	codec := signature.NewCodec("dispatch-secret")

	var gotBody []byte
	var gotSig, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(signature.HeaderWebhookSignature)
		gotKey = r.Header.Get(middleware.HeaderIdempotencyKey)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(server.URL, codec)
	attempts, err := dispatcher.Send(context.Background(), testEvent(), "wh-key-1")

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, "wh-key-1", gotKey)

	// Signature covers the exact bytes that went over the wire.
	assert.NoError(t, codec.Verify(gotBody, gotSig))

	var event models.WebhookEvent
	assert.NoError(t, json.Unmarshal(gotBody, &event))
	assert.Equal(t, models.EventStatusSuccess, event.Status)
}

func TestSend_RetriesThenSucceeds(t *testing.T) {
	codec := signature.NewCodec("dispatch-secret")

	var calls int32
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get(middleware.HeaderIdempotencyKey))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(server.URL, codec)
	attempts, err := dispatcher.Send(context.Background(), testEvent(), "wh-key-2")

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	// Every retry carried the same idempotency key.
	assert.Equal(t, []string{"wh-key-2", "wh-key-2", "wh-key-2"}, keys)
}

func TestSend_PermanentFailureStopsRetrying(t *testing.T) {
	codec := signature.NewCodec("dispatch-secret")

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(server.URL, codec)
	attempts, err := dispatcher.Send(context.Background(), testEvent(), "wh-key-3")

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSend_ExhaustsAttempts(t *testing.T) {
	codec := signature.NewCodec("dispatch-secret")

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(server.URL, codec)
	attempts, err := dispatcher.Send(context.Background(), testEvent(), "wh-key-4")

	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSend_TooManyRequestsIsRetried(t *testing.T) {
	codec := signature.NewCodec("dispatch-secret")

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(server.URL, codec)
	attempts, err := dispatcher.Send(context.Background(), testEvent(), "wh-key-5")

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestIsPermanentStatus(t *testing.T) {
	assert.True(t, isPermanentStatus(http.StatusBadRequest))
	assert.True(t, isPermanentStatus(http.StatusUnauthorized))
	assert.True(t, isPermanentStatus(http.StatusNotFound))
	assert.True(t, isPermanentStatus(http.StatusConflict))

	assert.False(t, isPermanentStatus(http.StatusRequestTimeout))
	assert.False(t, isPermanentStatus(http.StatusTooManyRequests))
	assert.False(t, isPermanentStatus(http.StatusInternalServerError))
	assert.False(t, isPermanentStatus(http.StatusServiceUnavailable))
	assert.False(t, isPermanentStatus(http.StatusOK))
}
