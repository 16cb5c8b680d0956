package middleware

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"

	"payflow/internal/common"
	"payflow/internal/signature"

	"github.com/labstack/echo/v4"
)

// WebhookSignature authenticates a webhook delivery before anything else
// touches it. It must sit ahead of the dedup gate in the chain so that a
// replayed or conflicting key never short-circuits an unsigned request into a
// cached response. Verification runs over the raw body bytes; the body is
// restored for downstream readers. All failure modes return the same opaque
// 401 and are only distinguished in the log.
func WebhookSignature(codec *signature.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return common.SendError(c, http.StatusBadRequest, common.CodeValidation, "Failed to read request body", nil)
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))

			sig := c.Request().Header.Get(signature.HeaderWebhookSignature)
			if err := codec.Verify(body, sig); err != nil {
				switch {
				case errors.Is(err, signature.ErrMissingSignature):
					log.Printf("webhook rejected: no signature header")
				case errors.Is(err, signature.ErrMalformedSignature):
					log.Printf("webhook rejected: malformed signature %q", sig)
				default:
					log.Printf("webhook rejected: signature mismatch")
				}
				return common.SendError(c, http.StatusUnauthorized, common.CodeUnauthorized, "Invalid webhook signature", nil)
			}
			return next(c)
		}
	}
}
