package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	MaxTotalTimeout time.Duration
}

// DefaultConfig returns a default retry configuration with 1 minute max timeout
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     10,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 60 * time.Second, // 1 minute max
	}
}

// DoWithLog executes the function with exponential backoff and logs each failed attempt
func DoWithLog(ctx context.Context, cfg Config, serviceName string, fn func() error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	if cfg.MaxTotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxTotalTimeout)
		defer cancel()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%s: retry aborted after %d attempts: %w (last error: %v)", serviceName, attempt-1, ctx.Err(), lastErr)
			}
			return fmt.Errorf("%s: retry aborted: %w", serviceName, ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("%s: max retry attempts (%d) exceeded: %w", serviceName, cfg.MaxAttempts, lastErr)
		}

		if logFn != nil {
			logFn(attempt, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: retry aborted after %d attempts: %w (last error: %v)", serviceName, attempt, err, lastErr)
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%s: max retry attempts exceeded: %w", serviceName, lastErr)
}

// Class tells DoClassified how to react to a failed attempt.
type Class int

const (
	// Fatal stops retrying immediately.
	Fatal Class = iota
	// Transient waits RetryDelay and retries the same target.
	Transient
	// RateLimited runs OnRateLimited, waits Cooldown, then retries.
	RateLimited
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

// Policy configures a bounded retry whose wait depends on the failure class.
type Policy struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Cooldown    time.Duration
	Classify    func(error) Class

	// OnRateLimited runs after every rate-limited attempt, including the last one.
	OnRateLimited func(attempt int, err error)
	// OnRetry runs before every wait.
	OnRetry func(attempt int, class Class, err error, wait time.Duration)
}

// AttemptsError is returned when every attempt failed.
type AttemptsError struct {
	Attempts int
	Last     error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *AttemptsError) Unwrap() error {
	return e.Last
}

// DoClassified calls fn until it succeeds, a failure classifies as Fatal,
// ctx is done, or MaxAttempts is reached. fn receives the 1-based attempt number.
// Fatal errors and context errors are returned unchanged; exhaustion returns *AttemptsError.
func DoClassified(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Transient }
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt-1, err, lastErr)
			}
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		class := classify(err)
		if class == Fatal {
			return err
		}

		wait := p.RetryDelay
		if class == RateLimited {
			if p.OnRateLimited != nil {
				p.OnRateLimited(attempt, err)
			}
			wait = p.Cooldown
		}

		if attempt == maxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, class, err, wait)
		}

		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt, err, lastErr)
		}
	}

	return &AttemptsError{Attempts: maxAttempts, Last: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
