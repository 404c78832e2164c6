package idempotency

import (
	"context"
	"errors"
	"time"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted for one Idempotency-Key.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	ShipmentID     string    `dynamodbav:"shipment_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`   // small JSON bodies only
	ResponseStatus int       `dynamodbav:"response_status,omitempty"` // e.g., 201
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Expired reports whether the record is past its TTL at now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}

// ErrNotFailed is returned by Rearm when the record is not in the FAILED state.
var ErrNotFailed = errors.New("idempotency record is not in FAILED state")

// Store tracks the lifecycle of idempotency keys.
type Store interface {
	// CreateIfNotExists records key as IN_PROGRESS. It returns false when a live record already exists.
	CreateIfNotExists(ctx context.Context, key string) (bool, error)
	// Get returns the live record for key, or (nil, nil).
	Get(ctx context.Context, key string) (*Record, error)
	// MarkDone stores the response to replay for key.
	MarkDone(ctx context.Context, key, shipmentID, responseBody string, responseStatus int) error
	// MarkFailed marks key FAILED with a note.
	MarkFailed(ctx context.Context, key, note string) error
	// Rearm moves a FAILED record back to IN_PROGRESS so the request can be retried.
	Rearm(ctx context.Context, key string) error
}
