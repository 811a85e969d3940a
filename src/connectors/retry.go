package connectors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Failure classes for upstream requests. The orchestrator and the cycle
// runner branch on these, so they must stay stable.
type ErrorKind string

const (
	ErrKindTimeout   ErrorKind = "timeout"
	ErrKindNetwork   ErrorKind = "network"
	ErrKindMalformed ErrorKind = "malformed-response"
	ErrKindHTTP      ErrorKind = "http-error"
)

// RequestError is the typed error returned by the transport client once the
// retry budget is exhausted (or immediately, for non-retryable classes).
type RequestError struct {
	Kind       ErrorKind
	StatusCode int
	URL        string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d) %s: %v", e.Kind, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure class from an error chain.
// Errors that are not RequestError are treated as network-level.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return ErrKindNetwork
}

// classifyTransportErr turns a low-level resty/net error into a failure class.
func classifyTransportErr(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return ErrKindTimeout
	}

	return ErrKindNetwork
}

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
)

// RetryPolicy is a reusable retry schedule shared by the transport client
// and the crawler: max attempts, jittered exponential backoff, and a
// predicate deciding which failures are worth retrying.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy retries only transient classes. Malformed responses
// indicate a misconfigured endpoint and HTTP errors carry upstream intent;
// retrying either would waste the budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultRetryAttempts,
		BaseDelay:   defaultRetryBaseDelay,
		MaxDelay:    defaultRetryMaxDelay,
		Retryable: func(err error) bool {
			switch KindOf(err) {
			case ErrKindTimeout, ErrKindNetwork:
				return true
			}
			return false
		},
	}
}

// Do runs fn until it succeeds, the error is not retryable, the attempt
// ceiling is reached, or ctx is cancelled. The attempt counter passed to fn
// starts at 1.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}

		if attempt == attempts {
			break
		}

		delay := p.backoffDelay(attempt)
		logger.WithFields(map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"delay":   delay.String(),
		}).WithError(lastErr).Warn("transient upstream failure, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// backoffDelay doubles the base delay per attempt and adds up to 50% random
// jitter so parallel workers do not hammer a recovering upstream in lockstep.
func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = defaultRetryBaseDelay
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}
