package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds per the cross-service taxonomy. Transient errors are retried by
// the transaction executor and the webhook dispatcher; everything else
// propagates immediately with a stable code.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindStateConflict
	KindUnauthorized
	KindTransient
)

// Stable machine-readable error codes.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeSubscriptionNotFound   = "SUBSCRIPTION_NOT_FOUND"
	CodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeIdempotencyConflict    = "IDEMPOTENCY_CONFLICT"
	CodeIdempotencyKeyRequired = "IDEMPOTENCY_KEY_REQUIRED"
	CodeSubscriptionExists     = "SUBSCRIPTION_EXISTS"
	CodeSubscriptionNotActive  = "SUBSCRIPTION_NOT_ACTIVE"
	CodeInvalidUpgrade         = "INVALID_UPGRADE"
	CodeInvalidDowngrade       = "INVALID_DOWNGRADE"
	CodeRateLimited            = "RATE_LIMITED"
	CodeServerError            = "SERVER_ERROR"
)

type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.cause }

// Status maps the kind to its HTTP status.
func (e *DomainError) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindStateConflict:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func AsDomainError(err error) (*DomainError, bool) {
	var derr *DomainError
	if errors.As(err, &derr) {
		return derr, true
	}
	return nil, false
}

func NewValidationError(message string, details map[string]string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: CodeValidation, Message: message, Details: details}
}

func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Code: code, Message: message}
}

func NewConflictError(code, message string, details map[string]string) *DomainError {
	return &DomainError{Kind: KindConflict, Code: code, Message: message, Details: details}
}

func NewStateConflictError(code, message string) *DomainError {
	return &DomainError{Kind: KindStateConflict, Code: code, Message: message}
}

func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

func NewTransientError(message string, cause error) *DomainError {
	return &DomainError{Kind: KindTransient, Code: CodeServerError, Message: message, cause: cause}
}
