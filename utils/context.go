package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default timeout for most store operations
	DefaultTimeout = 10 * time.Second

	// LongTimeout is for operations that may take longer (analysis, re-indexing, etc.)
	LongTimeout = 2 * time.Minute
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithLongTimeout creates a context with long timeout for operations that may take longer
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}
