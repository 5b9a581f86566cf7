package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

type observerFake struct {
	retries []string
	states  []string
}

func (o *observerFake) ObserveRetry(operation string) {
	o.retries = append(o.retries, operation)
}

func (o *observerFake) ObserveBreakerState(operation, state string) {
	o.states = append(o.states, operation+":"+state)
}

func TestExecuteReportsRetriesAndBreakerTransitions(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        2,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})
	observer := &observerFake{}
	exec.SetObserver(observer)

	errTemp := errors.New("temporary")
	_ = exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})

	if len(observer.retries) != 1 || observer.retries[0] != "qdrant.search" {
		t.Fatalf("expected one retry observed, got %v", observer.retries)
	}
	if len(observer.states) != 1 || observer.states[0] != "qdrant.search:open" {
		t.Fatalf("expected breaker to open, got %v", observer.states)
	}
}

func TestRunWithoutExecutorCallsDirectly(t *testing.T) {
	calls := 0
	err := Run(context.Background(), nil, "op", func(context.Context) error {
		calls++
		return nil
	}, nil)
	if err != nil || calls != 1 {
		t.Fatalf("expected one direct call, got calls=%d err=%v", calls, err)
	}
}

func TestExecuteSkipsRetryThatCannotFinishBeforeDeadline(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     time.Second,
		RetryMultiplier:     2,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	attempts := 0
	errTemp := errors.New("temporary")
	started := time.Now()
	err := exec.Execute(ctx, "ollama.generate", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) || attempts != 1 {
		t.Fatalf("expected single attempt with original error, got attempts=%d err=%v", attempts, err)
	}
	if time.Since(started) > 50*time.Millisecond {
		t.Fatalf("executor waited for a backoff past the deadline")
	}
}

func TestBackoffGrowsUpToMax(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 10 * time.Millisecond,
		RetryMaxBackoff:     35 * time.Millisecond,
		RetryMultiplier:     2,
	})
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
	for i, w := range want {
		if got := exec.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestProfilesDifferPerBackend(t *testing.T) {
	gen := Profile(BackendGeneration)
	ret := Profile(BackendRetrieval)
	events := Profile(BackendEvents)

	if gen.RetryMaxAttempts >= ret.RetryMaxAttempts {
		t.Fatalf("generation should retry less than retrieval: %d vs %d", gen.RetryMaxAttempts, ret.RetryMaxAttempts)
	}
	if gen.RetryInitialBackoff <= ret.RetryInitialBackoff {
		t.Fatalf("generation should back off longer than retrieval")
	}
	if events.RetryMaxAttempts <= ret.RetryMaxAttempts {
		t.Fatalf("events should tolerate more reconnect attempts")
	}
	if Profile("unknown").Backend != BackendGeneral {
		t.Fatalf("unknown backend should fall back to the general profile")
	}
}

func TestOverridesApplyOnlySetFields(t *testing.T) {
	base := Profile(BackendRetrieval)
	cfg := base.With(Overrides{
		RetryMaxAttempts:    7,
		BreakerOpenTimeout:  time.Minute,
		BreakerFailureRatio: 1.5,
	})
	if cfg.RetryMaxAttempts != 7 || cfg.BreakerOpenTimeout != time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RetryInitialBackoff != base.RetryInitialBackoff || cfg.BreakerFailureRatio != base.BreakerFailureRatio {
		t.Fatalf("unset or invalid overrides must keep profile values: %+v", cfg)
	}
	if !cfg.BreakerEnabled {
		t.Fatalf("breaker should stay enabled")
	}
	if base.With(Overrides{BreakerDisabled: true}).BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
}

func TestNormalizeFillsFromBackendProfile(t *testing.T) {
	exec := NewExecutor(Config{Backend: BackendGeneration, RetryMaxAttempts: 4})
	want := Profile(BackendGeneration)
	if exec.Backend() != BackendGeneration {
		t.Fatalf("unexpected backend %q", exec.Backend())
	}
	if exec.cfg.RetryMaxAttempts != 4 || exec.cfg.RetryInitialBackoff != want.RetryInitialBackoff ||
		exec.cfg.BreakerOpenTimeout != want.BreakerOpenTimeout {
		t.Fatalf("unexpected normalized config: %+v", exec.cfg)
	}
	if NewExecutor(Config{}).Backend() != BackendGeneral {
		t.Fatalf("empty backend should normalize to general")
	}
}

func TestOpenCircuitErrorNamesBackendAndOperation(t *testing.T) {
	exec := NewExecutor(Config{
		Backend:                 BackendRetrieval,
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     1,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})
	fail := func(context.Context) error { return errors.New("connection refused") }
	_ = exec.Execute(context.Background(), "qdrant.search", fail, nil)

	err := exec.Execute(context.Background(), "qdrant.search", fail, nil)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "retrieval") || !strings.Contains(msg, "qdrant.search") {
		t.Fatalf("expected backend and operation in %q", msg)
	}
}
