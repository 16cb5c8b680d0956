package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"payflow/internal/common"
	"payflow/internal/models"
	"payflow/internal/repositories"

	"github.com/labstack/echo/v4"
)

// HeaderIdempotencyKey is the client-supplied token scoping "same logical
// request" across retries.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed marks a response served from the fingerprint
// store instead of re-executing the handler.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// IdempotencyMiddleware is the mutation dedup gate. It wraps mutating
// endpoints, consults the fingerprint store before executing and caches the
// response after. Read-only verbs bypass it entirely.
type IdempotencyMiddleware struct {
	repo       repositories.IdempotencyRepository
	ttl        time.Duration
	requireKey bool
}

func NewIdempotencyMiddleware(repo repositories.IdempotencyRepository, ttl time.Duration, requireKey bool) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		repo:       repo,
		ttl:        ttl,
		requireKey: requireKey,
	}
}

// Gate deduplicates mutating requests:
//   - no record for the key: execute, then commit the response on success
//   - record with matching body hash: replay the cached response verbatim
//   - record with a different body hash: 409, the key was reused
func (m *IdempotencyMiddleware) Gate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isMutating(c.Request().Method) {
				return next(c)
			}

			key := c.Request().Header.Get(HeaderIdempotencyKey)
			if key == "" {
				if m.requireKey {
					return common.SendError(c, http.StatusBadRequest, common.CodeIdempotencyKeyRequired,
						"Idempotency-Key header is required for mutating requests", nil)
				}
				return next(c)
			}

			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return common.SendError(c, http.StatusBadRequest, common.CodeValidation, "Failed to read request body", nil)
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))

			bodyHash := BodyHash(body)
			ctx := c.Request().Context()

			record, err := m.repo.Get(ctx, key)
			if err != nil {
				log.Printf("idempotency lookup failed for key %s: %v", key, err)
				return common.SendError(c, http.StatusInternalServerError, common.CodeServerError,
					"Idempotency check unavailable", nil)
			}

			if record != nil {
				if record.RequestBodyHash != bodyHash {
					return common.SendError(c, http.StatusConflict, common.CodeIdempotencyConflict,
						"Idempotency key was already used with a different request body",
						map[string]string{"original_path": record.RequestMethod + " " + record.RequestPath})
				}
				c.Response().Header().Set(HeaderIdempotencyReplayed, "true")
				return c.Blob(record.ResponseStatus, echo.MIMEApplicationJSON, record.ResponseBody)
			}

			recorder := newResponseRecorder(c.Response().Writer)
			c.Response().Writer = recorder

			if err := next(c); err != nil {
				return err
			}

			status := c.Response().Status
			if status >= 200 && status < 300 {
				commit := &models.IdempotencyRecord{
					Key:             key,
					RequestMethod:   c.Request().Method,
					RequestPath:     c.Request().URL.Path,
					RequestBodyHash: bodyHash,
					ResponseStatus:  status,
					ResponseBody:    recorder.body.Bytes(),
					ExpiresAt:       time.Now().Add(m.ttl),
				}
				// Best effort: a caching failure must never reject the
				// original call.
				if err := m.repo.Create(ctx, commit); err != nil {
					log.Printf("idempotency commit failed for key %s: %v", key, err)
				}
			}
			return nil
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// BodyHash computes the request fingerprint. JSON bodies are canonicalized
// (decode + re-encode sorts object keys) so equivalent payloads with
// different key order hash the same; anything else hashes raw.
func BodyHash(body []byte) string {
	canonical := body
	if len(body) > 0 {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err == nil {
			if encoded, err := json.Marshal(decoded); err == nil {
				canonical = encoded
			}
		}
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// responseRecorder duplicates the response body while it streams out so the
// gate can cache what was actually sent.
type responseRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
