package retryx

import (
	"context"
	"time"
)

type retryOptions struct {
	ctx             context.Context
	retryCount      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	retryIf         func(error) bool
}

type RetryOption func(*retryOptions)

func WithRetryCount(count int) RetryOption {
	return func(ro *retryOptions) {
		ro.retryCount = count
	}
}

func WithInterval(interval time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.initialInterval = interval
	}
}

func WithMaxInterval(interval time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.maxInterval = interval
	}
}

func WithMaxElapsedTime(d time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.maxElapsedTime = d
	}
}

// WithContext stops the retries as soon as ctx is done.
func WithContext(ctx context.Context) RetryOption {
	return func(ro *retryOptions) {
		ro.ctx = ctx
	}
}

// WithRetryIf only retries the errors for which fn returns true. Other errors
// are returned right away.
func WithRetryIf(fn func(error) bool) RetryOption {
	return func(ro *retryOptions) {
		ro.retryIf = fn
	}
}
