package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Outcome tells the executor what a failed call means for retries and for the breaker.
type Outcome int

const (
	// Transient failures are retried and count against the breaker.
	Transient Outcome = iota
	// Unavailable failures are not retried but still count against the breaker.
	Unavailable
	// Rejected failures are the caller's fault: no retry, breaker untouched.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Transient:
		return "transient"
	case Unavailable:
		return "unavailable"
	default:
		return "rejected"
	}
}

type Classifier func(err error) Outcome

// Observer receives retry and breaker transitions, typically for metrics.
type Observer interface {
	ObserveRetry(operation string)
	ObserveBreakerState(operation, state string)
}

type noopObserver struct{}

func (noopObserver) ObserveRetry(string)                {}
func (noopObserver) ObserveBreakerState(string, string) {}

// Executor runs outbound calls under a Policy, with one breaker per operation name.
type Executor struct {
	policy   Policy
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(policy Policy, logger *slog.Logger, observer Observer) (*Executor, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("resilience policy: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Executor{
		policy:   policy,
		logger:   logger,
		observer: observer,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}, nil
}

// Do runs fn until it succeeds, fails with a non-transient outcome, or runs out of attempts.
// Context cancellation is never retried and never trips the breaker.
func (e *Executor) Do(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("resilience: nil operation")
	}
	if classify == nil {
		classify = func(error) Outcome { return Unavailable }
	}
	outcome := func(err error) Outcome {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Rejected
		}
		return classify(err)
	}

	if !e.policy.Breaker.Enabled {
		return e.attempt(ctx, operation, outcome, fn)
	}
	_, err := e.breaker(operation, outcome).Execute(func() (struct{}, error) {
		return struct{}{}, e.attempt(ctx, operation, outcome, fn)
	})
	return err
}

func (e *Executor) attempt(ctx context.Context, operation string, outcome Classifier, fn func(context.Context) error) error {
	attempts := e.policy.Retry.Attempts
	var err error
	for n := 1; n <= attempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if n == attempts || outcome(err) != Transient {
			return err
		}

		wait := e.policy.Retry.delay(n)
		e.observer.ObserveRetry(operation)
		e.logger.Warn("retry_attempt",
			"operation", operation,
			"attempt", n,
			"max_attempts", attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err.Error(),
		)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (e *Executor) breaker(operation string, outcome Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	bp := e.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: bp.HalfOpenRequests,
		Timeout:     bp.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= bp.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= bp.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || outcome(err) == Rejected
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.observer.ObserveBreakerState(name, to.String())
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
