// Package retry implements bounded retry with exponential backoff and
// error classification for calls to the AI backend. Classification is
// lossless: the original error always propagates unchanged, so callers
// above can re-derive the class from the same status and message.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"sentilytics/internal/logging"
)

// Class buckets a raw error for retry eligibility and user messaging.
type Class int

const (
	ClassFatal          Class = iota // Malformed request etc. - never retried
	ClassAuthentication              // Bad/missing credential - never retried
	ClassRateLimited                 // Quota/429 - retried up to the bound
	ClassTransient                   // 5xx/transport - retried with backoff
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassAuthentication:
		return "authentication"
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// Retryable reports whether errors of this class may be retried.
func (c Class) Retryable() bool {
	return c == ClassRateLimited || c == ClassTransient
}

// StatusCoder is implemented by errors carrying an HTTP-style status.
type StatusCoder interface {
	StatusCode() int
}

// Classify derives the class of a raw error from its status code and
// lowercased message. 401/403 -> Authentication, 429 -> RateLimited,
// 500/503 or quota/transport wording -> Transient, anything else Fatal.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}

	status := 0
	var sc StatusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}

	switch status {
	case 401, 403:
		return ClassAuthentication
	case 429:
		return ClassRateLimited
	case 500, 503:
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "quota") ||
		strings.Contains(msg, "xhr error") ||
		strings.Contains(msg, "rpc failed") {
		return ClassTransient
	}

	return ClassFatal
}

// Status extracts the HTTP-style status from an error, or 0 if the
// error carries none.
func Status(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

const (
	// DefaultMaxRetries bounds retries after the initial attempt,
	// giving at most 3 attempts total.
	DefaultMaxRetries = 2
	// DefaultBackoff is the first suspension; it doubles each retry
	// (no jitter, no cap - worst case 2s + 4s = 6s suspended).
	DefaultBackoff = 2 * time.Second
)

// Options configures a retry sequence.
type Options struct {
	MaxRetries int
	Backoff    time.Duration

	// sleep is the suspension hook, overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns the standard retry bounds.
func DefaultOptions() Options {
	return Options{MaxRetries: DefaultMaxRetries, Backoff: DefaultBackoff}
}

// sleepCtx suspends for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do invokes op, retrying retryable failures with exponential backoff.
// On success the value is returned immediately. A non-retryable failure,
// or exhausted retries, propagates the original error unchanged. The
// backoff suspension is interruptible via ctx.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts Options) (T, error) {
	var zero T

	sleep := opts.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	for attempt := 0; ; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}

		class := Classify(err)
		if !class.Retryable() || attempt >= opts.MaxRetries {
			return zero, err
		}

		logging.InsightWarn("retry: attempt %d/%d failed class=%s backoff=%v: %v",
			attempt+1, opts.MaxRetries+1, class, backoff, err)

		if serr := sleep(ctx, backoff); serr != nil {
			return zero, serr
		}
		backoff *= 2
	}
}
