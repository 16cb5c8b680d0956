package models

import "time"

// IdempotencyRecord stores the first successful response for a client-supplied
// key together with a digest of the originating request. A record is immutable
// once committed; the sweep job removes it after expires_at.
type IdempotencyRecord struct {
	Key             string    `json:"key" db:"key"`
	RequestMethod   string    `json:"request_method" db:"request_method"`
	RequestPath     string    `json:"request_path" db:"request_path"`
	RequestBodyHash string    `json:"request_body_hash" db:"request_body_hash"`
	ResponseStatus  int       `json:"response_status" db:"response_status"`
	ResponseBody    []byte    `json:"-" db:"response_body"`
	ExpiresAt       time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
