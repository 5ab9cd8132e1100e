package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Policy bounds how often an outbound call is retried and when its breaker opens.
type Policy struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// RetryPolicy doubles the wait after every failed attempt, up to MaxBackoff.
type RetryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

type BreakerPolicy struct {
	Enabled bool
	// MinRequests is the window size before FailureRatio is evaluated.
	MinRequests      uint32
	FailureRatio     float64
	OpenFor          time.Duration
	HalfOpenRequests uint32
}

func (p Policy) Validate() error {
	var errs []error
	if p.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be at least 1, got %d", p.Retry.Attempts))
	}
	if p.Retry.Backoff < 0 || p.Retry.MaxBackoff < p.Retry.Backoff {
		errs = append(errs, fmt.Errorf("retry backoff %s must be within [0, %s]", p.Retry.Backoff, p.Retry.MaxBackoff))
	}
	if p.Breaker.Enabled {
		if p.Breaker.MinRequests == 0 {
			errs = append(errs, errors.New("breaker min requests must be positive"))
		}
		if p.Breaker.FailureRatio <= 0 || p.Breaker.FailureRatio > 1 {
			errs = append(errs, fmt.Errorf("breaker failure ratio %v must be in (0, 1]", p.Breaker.FailureRatio))
		}
		if p.Breaker.OpenFor <= 0 {
			errs = append(errs, errors.New("breaker open duration must be positive"))
		}
		if p.Breaker.HalfOpenRequests == 0 {
			errs = append(errs, errors.New("breaker half-open requests must be positive"))
		}
	}
	return errors.Join(errs...)
}

// delay is the wait before attempt n+1 after attempt n failed.
func (r RetryPolicy) delay(n int) time.Duration {
	d := r.Backoff
	for i := 1; i < n && d < r.MaxBackoff; i++ {
		d *= 2
	}
	if d > r.MaxBackoff {
		d = r.MaxBackoff
	}
	return d
}
