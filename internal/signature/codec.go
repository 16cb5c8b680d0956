package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// HeaderWebhookSignature carries the hex HMAC-SHA256 of the raw request body.
const HeaderWebhookSignature = "X-Webhook-Signature"

// Verification failures. All of them surface to callers as 401 with an opaque
// code; the distinction exists for operator diagnostics only.
var (
	ErrMissingSignature   = errors.New("signature header missing")
	ErrMalformedSignature = errors.New("signature is not valid hex")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)

// Codec signs and verifies payloads with HMAC-SHA256 over the exact byte
// sequence on the wire. Receivers must verify the raw received body, never a
// re-serialization.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA256 digest of payload.
func (c *Codec) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks sig against payload using a constant-time comparison.
func (c *Codec) Verify(payload []byte, sig string) error {
	if sig == "" {
		return ErrMissingSignature
	}
	provided, err := hex.DecodeString(sig)
	if err != nil || len(provided) != sha256.Size {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return ErrSignatureMismatch
	}
	return nil
}
