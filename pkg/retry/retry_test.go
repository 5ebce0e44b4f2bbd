package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

// instant returns a policy that records delays instead of sleeping.
func instant(p Policy, slept *[]time.Duration) Policy {
	p.sleep = func(ctx context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return ctx.Err()
	}
	return p
}

func TestDelay(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Factor: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayFactorBelowOne(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Factor: 0.5}
	if got := p.Delay(4); got != time.Second {
		t.Errorf("Delay(4) = %v, want constant 1s", got)
	}
}

func TestJitter(t *testing.T) {
	tests := []struct {
		name   string
		jitter float64
		r      float64
		want   time.Duration
	}{
		{"no jitter", 0, 0.9, time.Second},
		{"max negative", 0.5, 0, 500 * time.Millisecond},
		{"center", 0.5, 0.5, time.Second},
		{"max positive", 0.5, 1, 1500 * time.Millisecond},
		{"clamped above one", 3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{Jitter: tt.jitter, rand: func() float64 { return tt.r }}
			if got := p.jittered(time.Second); got != tt.want {
				t.Errorf("jittered(1s) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDoSuccessFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), instant(DefaultPolicy(), nil), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	var slept []time.Duration
	p := instant(Policy{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond, Factor: 2}, &slept)

	var attempts []int
	err := Do(context.Background(), p, func(ctx context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("attempts = %v, want [1 2 3]", attempts)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(slept) != len(want) || slept[0] != want[0] || slept[1] != want[1] {
		t.Errorf("slept = %v, want %v", slept, want)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), instant(Policy{MaxAttempts: 4}, nil), func(ctx context.Context, attempt int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Errorf("Do() error = %v, want %v", err, errTransient)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), instant(Policy{}, nil), func(ctx context.Context, attempt int) error {
		calls++
		return errTransient
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), instant(DefaultPolicy(), nil), func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(errTransient)
	})
	if err != errTransient {
		t.Errorf("Do() error = %v, want unwrapped %v", err, errTransient)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoBeforeRetryDeclines(t *testing.T) {
	original := errors.New("always fails")
	calls := 0
	prompts := 0

	p := instant(Policy{MaxAttempts: 5}, nil)
	p.BeforeRetry = func(ctx context.Context, err error, nextAttempt int) (bool, error) {
		prompts++
		if err != original {
			t.Errorf("BeforeRetry got %v, want original error", err)
		}
		if nextAttempt != 2 {
			t.Errorf("nextAttempt = %d, want 2", nextAttempt)
		}
		return false, nil
	}

	err := Do(context.Background(), p, func(ctx context.Context, attempt int) error {
		calls++
		return original
	})
	if err != original {
		t.Errorf("Do() error = %v, want original error unmodified", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1", calls)
	}
	if prompts != 1 {
		t.Errorf("prompts = %d, want 1", prompts)
	}
}

func TestDoBeforeRetryError(t *testing.T) {
	p := instant(Policy{MaxAttempts: 3}, nil)
	p.BeforeRetry = func(ctx context.Context, err error, nextAttempt int) (bool, error) {
		return true, errors.New("prompt failed")
	}
	err := Do(context.Background(), p, func(ctx context.Context, attempt int) error {
		return errTransient
	})
	if err != errTransient {
		t.Errorf("Do() error = %v, want %v", err, errTransient)
	}
}

func TestDoOnRetryObserves(t *testing.T) {
	p := instant(Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Factor: 2}, nil)
	var seen []int
	p.OnRetry = func(err error, nextAttempt int, delay time.Duration) {
		seen = append(seen, nextAttempt)
	}
	_ = Do(context.Background(), p, func(ctx context.Context, attempt int) error {
		return errTransient
	})
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Errorf("OnRetry attempts = %v, want [2 3]", seen)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultPolicy(), func(ctx context.Context, attempt int) error {
		calls++
		return errTransient
	})
	if err != context.Canceled {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestDoCancellationDuringAttemptNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, instant(DefaultPolicy(), nil), func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRealSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Do(ctx, Policy{MaxAttempts: 3, InitialDelay: time.Hour}, func(ctx context.Context, attempt int) error {
		return errTransient
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Do() did not stop waiting when the context expired")
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should return nil")
	}
	err := Permanent(errTransient)
	if !IsPermanent(err) {
		t.Error("IsPermanent should return true for wrapped error")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if IsPermanent(errTransient) {
		t.Error("IsPermanent should return false for unwrapped error")
	}
	if !errors.Is(err, errTransient) {
		t.Error("errors.Is should see through PermanentError")
	}
}
