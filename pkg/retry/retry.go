package retry

import (
	"context"
	"math/rand"
	"time"
)

type Operation = func() error

// Retryable decides whether an error is worth another attempt. A nil
// predicate retries everything.
type Retryable = func(error) bool

type Config struct {
	MaxAttempts   int
	BackoffFactor float64
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Jitter        time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		BackoffFactor: 2.0,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		Jitter:        250 * time.Millisecond,
	}
}

type Retrier struct {
	config    *Config
	retryable Retryable
}

func NewRetrier(config *Config, retryable Retryable) *Retrier {
	return &Retrier{
		config:    config,
		retryable: retryable,
	}
}

func NewDefaultRetrier() *Retrier {
	return NewRetrier(NewDefaultConfig(), nil)
}

// Do runs op until it succeeds, the attempt budget is spent, the error is
// classified non-retryable, or the context is cancelled.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var err error
	delay := r.config.InitialDelay
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if r.retryable != nil && !r.retryable(err) {
			return err
		}

		if attempt == r.config.MaxAttempts {
			return err
		}

		jitter := time.Duration(rnd.Float64() * float64(r.config.Jitter))
		nextDelay := delay + jitter
		if nextDelay > r.config.MaxDelay {
			nextDelay = r.config.MaxDelay + jitter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nextDelay):
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
	return err
}
