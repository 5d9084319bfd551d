package repository

import (
	"context"
	"time"

	"codes-api/internal/gateway/domain/model"
)

// DocumentCounter counts the documents of one collection.
type DocumentCounter interface {
	Count(ctx context.Context) (int64, error)
}

// HealthChecker is a named dependency that can be pinged.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Store exposes the collections the gateway reports on.
type Store interface {
	HealthChecker
	Users() DocumentCounter
	Codes() DocumentCounter
}

// RateLimitCounter counts requests per client across every gateway replica.
// Allow records one request for key and reports whether it fits in limit
// requests per window.
type RateLimitCounter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*model.RateLimitDecision, error)
}

// StoreError is returned when a store operation fails. Its message is the
// underlying failure description.
type StoreError struct {
	Collection string
	Op         string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return "store error"
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err for the given collection and operation.
func NewStoreError(collection, op string, err error) *StoreError {
	return &StoreError{Collection: collection, Op: op, Err: err}
}
