package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func serverError() error {
	return &ProviderError{Provider: "test", StatusCode: 503, ErrorClass: ErrorClassServer, Message: "503"}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want 2", config.MaxAttempts)
	}
	if config.InitialBackoff != 300*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 300ms", config.InitialBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
	if config.Jitter != 0 {
		t.Errorf("Jitter = %v, want 0", config.Jitter)
	}
	if NoRetry().MaxAttempts != 1 {
		t.Errorf("NoRetry().MaxAttempts = %d, want 1", NoRetry().MaxAttempts)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	rec := &recordingSleep{}
	calls := 0

	err := retryWithBackoff(context.Background(), "test", DefaultRetryConfig(), rec.sleep, zerolog.Nop(), func(int) error {
		calls++
		if calls == 1 {
			return serverError()
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 300*time.Millisecond {
		t.Errorf("delays = %v, want [300ms]", rec.delays)
	}
}

func TestRetryWithBackoff_ClientErrorNotRetried(t *testing.T) {
	rec := &recordingSleep{}
	calls := 0
	clientErr := &ProviderError{Provider: "test", StatusCode: 400, ErrorClass: ErrorClassClient}

	err := retryWithBackoff(context.Background(), "test", DefaultRetryConfig(), rec.sleep, zerolog.Nop(), func(int) error {
		calls++
		return clientErr
	})

	if !errors.Is(err, clientErr) {
		t.Errorf("expected the client error, got %v", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("client errors must not be reported as exhausted retries")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_UnclassifiedNotRetried(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), "test", DefaultRetryConfig(), (&recordingSleep{}).sleep, zerolog.Nop(), func(int) error {
		calls++
		return ErrMalformedResponse
	})

	if !errors.Is(err, ErrMalformedResponse) || calls != 1 {
		t.Errorf("err = %v, calls = %d; want malformed after 1 call", err, calls)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	rec := &recordingSleep{}
	cfg := RetryConfig{MaxAttempts: 4, InitialBackoff: 300 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2}

	err := retryWithBackoff(context.Background(), "test", cfg, rec.sleep, zerolog.Nop(), func(int) error {
		return serverError()
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if ClassOf(err) != ErrorClassServer {
		t.Errorf("exhausted error should keep the last class, got %q", ClassOf(err))
	}

	want := []time.Duration{300 * time.Millisecond, 600 * time.Millisecond, time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], want[i])
		}
	}
}

func TestRetryWithBackoff_SingleAttemptReturnsError(t *testing.T) {
	err := retryWithBackoff(context.Background(), "test", NoRetry(), (&recordingSleep{}).sleep, zerolog.Nop(), func(int) error {
		return serverError()
	})

	if errors.Is(err, ErrRetryExhausted) {
		t.Error("a single attempt policy should return the error unchanged")
	}
	if ClassOf(err) != ErrorClassServer {
		t.Errorf("ClassOf() = %q, want server", ClassOf(err))
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryWithBackoff(ctx, "test", DefaultRetryConfig(), sleepContext, zerolog.Nop(), func(int) error {
		return serverError()
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("expected ErrContextCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestRetryWithBackoff_Jitter(t *testing.T) {
	rec := &recordingSleep{}
	cfg := DefaultRetryConfig()
	cfg.Jitter = 0.2

	_ = retryWithBackoff(context.Background(), "test", cfg, rec.sleep, zerolog.Nop(), func(int) error {
		return serverError()
	})

	if len(rec.delays) != 1 {
		t.Fatalf("delays = %v, want one delay", rec.delays)
	}
	d := rec.delays[0]
	if d < 240*time.Millisecond || d > 360*time.Millisecond {
		t.Errorf("jittered delay = %v, want within ±20%% of 300ms", d)
	}
}

func TestSleepContext(t *testing.T) {
	start := time.Now()
	if err := sleepContext(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("sleepContext failed: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("sleepContext returned early")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := sleepContext(ctx, time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("sleepContext with deadline = %v, want DeadlineExceeded", err)
	}
}
