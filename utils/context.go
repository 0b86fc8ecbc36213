package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default timeout for database and pod-control calls
	DefaultTimeout = 10 * time.Second

	// LongTimeout is for operations that may take longer (ingestion batches, exports)
	LongTimeout = 30 * time.Second

	// ShortTimeout is for quick operations (cache lookups, health pings)
	ShortTimeout = 2 * time.Second
)

type ctxKey int

const requestIDKey ctxKey = iota

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithLongTimeout creates a context with long timeout for operations that may take longer
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

// WithShortTimeout creates a context with short timeout for quick operations
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}

// WithRequestID attaches the request id so services below the HTTP layer can log it.
func WithRequestID(parent context.Context, id string) context.Context {
	return context.WithValue(parent, requestIDKey, id)
}

// RequestIDFrom returns the request id, or "" outside a request.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
