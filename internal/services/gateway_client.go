package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"payflow/internal/middleware"

	"github.com/google/uuid"
)

// PaymentGatewayClient is the subscription service's client for the payment
// simulator. Initiation is a mutating call, so every request carries an
// idempotency key derived from the payment record it funds.
type PaymentGatewayClient interface {
	InitiatePayment(ctx context.Context, req *InitiatePaymentRequest, idempotencyKey string) (*InitiatePaymentResponse, error)
}

type InitiatePaymentRequest struct {
	ExternalReference uuid.UUID `json:"external_reference"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
}

type InitiatePaymentResponse struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Status    string    `json:"status"`
}

type paymentGatewayClient struct {
	baseURL string
	http    *http.Client
}

func NewPaymentGatewayClient(baseURL string, timeout time.Duration) PaymentGatewayClient {
	return &paymentGatewayClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *paymentGatewayClient) InitiatePayment(ctx context.Context, initReq *InitiatePaymentRequest, idempotencyKey string) (*InitiatePaymentResponse, error) {
	bodyBytes, err := json.Marshal(initReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments/initiate", bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderIdempotencyKey, idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment gateway responded %d: %s", resp.StatusCode, data)
	}

	var initResp InitiatePaymentResponse
	if err := json.Unmarshal(data, &initResp); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	return &initResp, nil
}
