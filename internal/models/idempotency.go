package models

import (
	"encoding/json"
	"time"
)

// Idempotency record statuses. A record moves pending -> completed or
// pending -> failed exactly once and is never deleted inside its retention
// window.
const (
	IdemPending   = "PENDING"
	IdemCompleted = "COMPLETED"
	IdemFailed    = "FAILED"
)

// IdempotencyRecord pins a caller-supplied reference to the outcome of the
// first request that carried it. ResponseStatus/ResponseBody hold enough to
// replay the original HTTP response verbatim without recomputation.
type IdempotencyRecord struct {
	Reference      string          `json:"reference" db:"reference"`
	RequestHash    string          `json:"request_hash" db:"request_hash"`
	Status         string          `json:"status" db:"status"`
	ResponseStatus int             `json:"response_status" db:"response_status"`
	ResponseBody   json.RawMessage `json:"response_body" db:"response_body"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
