package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr struct {
	status  int
	message string
}

func (e *statusErr) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.status, e.message)
}

func (e *statusErr) StatusCode() int { return e.status }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassFatal},
		{"status 401", &statusErr{status: 401}, ClassAuthentication},
		{"status 403", &statusErr{status: 403}, ClassAuthentication},
		{"status 429", &statusErr{status: 429}, ClassRateLimited},
		{"status 500", &statusErr{status: 500}, ClassTransient},
		{"status 503", &statusErr{status: 503}, ClassTransient},
		{"status 404", &statusErr{status: 404}, ClassFatal},
		{"wrapped status", fmt.Errorf("call failed: %w", &statusErr{status: 429}), ClassRateLimited},
		{"quota wording", errors.New("Quota exceeded for today"), ClassTransient},
		{"xhr wording", errors.New("XHR error during fetch"), ClassTransient},
		{"rpc wording", errors.New("RPC failed: unavailable"), ClassTransient},
		{"plain failure", errors.New("boom"), ClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if ClassFatal.Retryable() || ClassAuthentication.Retryable() {
		t.Error("fatal/authentication must not be retryable")
	}
	if !ClassRateLimited.Retryable() || !ClassTransient.Retryable() {
		t.Error("rate_limited/transient must be retryable")
	}
}

func TestStatus(t *testing.T) {
	if got := Status(&statusErr{status: 429}); got != 429 {
		t.Errorf("Status = %d, want 429", got)
	}
	if got := Status(errors.New("no status")); got != 0 {
		t.Errorf("Status = %d, want 0", got)
	}
}

// testOptions returns default bounds with sleeps recorded instead of taken.
func testOptions(slept *[]time.Duration) Options {
	opts := DefaultOptions()
	opts.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return opts
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	var slept []time.Duration
	calls := 0

	got, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	}, testOptions(&slept))

	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls, want \"ok\" after 1", got, calls)
	}
	if len(slept) != 0 {
		t.Errorf("unexpected sleeps: %v", slept)
	}
}

func TestDoRecoversAfterTransientFailures(t *testing.T) {
	var slept []time.Duration
	calls := 0

	got, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &statusErr{status: 503, message: "unavailable"}
		}
		return "recovered", nil
	}, testOptions(&slept))

	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if got != "recovered" || calls != 3 {
		t.Errorf("got %q after %d calls, want \"recovered\" after 3", got, calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestDoAuthenticationNotRetried(t *testing.T) {
	var slept []time.Duration
	calls := 0
	authErr := &statusErr{status: 401, message: "bad key"}

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, authErr
	}, testOptions(&slept))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(slept) != 0 {
		t.Errorf("unexpected sleeps: %v", slept)
	}
	// The original error must propagate unchanged so callers can
	// re-classify it.
	var sc *statusErr
	if !errors.As(err, &sc) || sc != authErr {
		t.Errorf("Do returned %v, want the original error", err)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	var slept []time.Duration
	calls := 0
	rateErr := &statusErr{status: 429, message: "slow down"}

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, rateErr
	}, testOptions(&slept))

	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
	if len(slept) != 2 {
		t.Errorf("sleeps = %v, want 2 entries", slept)
	}
	var sc *statusErr
	if !errors.As(err, &sc) || sc.StatusCode() != 429 {
		t.Errorf("Do returned %v, want the original 429 error", err)
	}
}

func TestDoFatalNotRetried(t *testing.T) {
	var slept []time.Duration
	calls := 0

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("malformed request")
	}, testOptions(&slept))

	if calls != 1 || len(slept) != 0 {
		t.Errorf("calls=%d sleeps=%v, want 1 call and no sleeps", calls, slept)
	}
	if err == nil || err.Error() != "malformed request" {
		t.Errorf("Do returned %v, want the original error", err)
	}
}

func TestDoBackoffInterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	opts := DefaultOptions()
	opts.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepCtx(ctx, d)
	}

	start := time.Now()
	_, err := Do(ctx, func(ctx context.Context) (int, error) {
		calls++
		return 0, &statusErr{status: 503}
	}, opts)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do returned %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancellation during first backoff)", calls)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Do blocked for %v despite cancellation", elapsed)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", opts.MaxRetries)
	}
	if opts.Backoff != 2*time.Second {
		t.Errorf("Backoff = %v, want 2s", opts.Backoff)
	}
}
