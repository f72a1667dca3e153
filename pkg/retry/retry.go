package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config controls bounded exponential backoff.
type Config struct {
	// MaxRetries is the number of attempts after the first (0 = no retries).
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter is the fraction of the backoff randomized each attempt.
	Jitter float64
	// Retryable lists errors worth retrying. Nil retries everything.
	Retryable []error
}

func defaults(cfg Config) Config {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0.2
	}
	return cfg
}

// Retryer re-runs an operation with exponential backoff until it succeeds,
// returns a non-retryable error, or the context ends.
type Retryer struct {
	cfg Config
}

func New(cfg Config) *Retryer {
	return &Retryer{cfg: defaults(cfg)}
}

func (r *Retryer) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.retryable(err) {
			return err
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(r.backoff(attempt)):
		}
	}
	return lastErr
}

func (r *Retryer) retryable(err error) bool {
	if r.cfg.Retryable == nil {
		return true
	}
	for _, target := range r.cfg.Retryable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (r *Retryer) backoff(attempt int) time.Duration {
	d := float64(r.cfg.InitialBackoff) * math.Pow(r.cfg.Multiplier, float64(attempt))
	if d > float64(r.cfg.MaxBackoff) {
		d = float64(r.cfg.MaxBackoff)
	}
	if r.cfg.Jitter > 0 {
		d += d * r.cfg.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
