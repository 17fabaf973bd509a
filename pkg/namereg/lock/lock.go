// Package lock provides a mutual-exclusion helper on top of exclusive
// registration: acquire a key with bounded retries and backoff, run a
// critical section, and release the key so the next FIFO waiter takes
// over. Owner termination releases the key even if the critical
// section panics, so a crashed holder never wedges its contenders.
package lock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/randalmurphal/namereg/pkg/namereg"
	"github.com/randalmurphal/namereg/pkg/namereg/config"
)

// ErrUnavailable reports that the key could not be acquired within the
// configured attempts.
var ErrUnavailable = errors.New("lock: unavailable")

// Config configures acquisition behavior.
type Config struct {
	// Timeout bounds each acquisition attempt. Zero fails fast per
	// attempt; negative waits with no deadline (MaxAttempts then has
	// little effect beyond the first attempt).
	Timeout time.Duration

	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// Backoff is the pause between attempts.
	Backoff time.Duration

	// BackoffFactor is the multiplier applied to the pause after each
	// attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor. New clamps it to [0, 1];
	// anything above 1 could turn a backoff negative.
	Jitter float64
}

// DefaultConfig is the standard acquisition configuration.
var DefaultConfig = Config{
	Timeout:       5 * time.Second,
	MaxAttempts:   3,
	Backoff:       100 * time.Millisecond,
	BackoffFactor: 2.0,
	Jitter:        0.1,
}

// ConfigFrom builds a Config from a config map, falling back to
// DefaultConfig per key.
//
// Recognized keys: "lock_timeout", "lock_max_attempts", "lock_backoff",
// "lock_backoff_factor", "lock_jitter".
func ConfigFrom(cfg config.Config) Config {
	return Config{
		Timeout:       cfg.Duration("lock_timeout", DefaultConfig.Timeout),
		MaxAttempts:   cfg.Int("lock_max_attempts", DefaultConfig.MaxAttempts),
		Backoff:       cfg.Duration("lock_backoff", DefaultConfig.Backoff),
		BackoffFactor: cfg.Float("lock_backoff_factor", DefaultConfig.BackoffFactor),
		Jitter:        cfg.Float("lock_jitter", DefaultConfig.Jitter),
	}
}

// Locker acquires and releases exclusive registrations on a registry.
type Locker[K comparable, V any] struct {
	reg *namereg.Registry[K, V]
	cfg Config
}

// New creates a locker over reg, clamping out-of-range Config values.
func New[K comparable, V any](reg *namereg.Registry[K, V], cfg Config) *Locker[K, V] {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Jitter > 1 {
		cfg.Jitter = 1
	}
	return &Locker[K, V]{reg: reg, cfg: cfg}
}

// Acquire registers key exclusively for owner, retrying with backoff
// per the locker's Config. It returns ErrUnavailable (wrapping the last
// conflict or timeout) once attempts are exhausted.
func (l *Locker[K, V]) Acquire(ctx context.Context, key K, value V, owner *namereg.Owner) error {
	backoff := l.cfg.Backoff
	var lastErr error

	for attempt := 0; attempt < l.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 && backoff > 0 {
			select {
			case <-time.After(jittered(backoff, l.cfg.Jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(float64(backoff) * l.cfg.BackoffFactor)
		}

		err := l.reg.RegisterExclusive(ctx, key, value, owner, l.cfg.Timeout)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, l.cfg.MaxAttempts, lastErr)
}

// Release gives the key up; the next FIFO waiter, if any, is promoted.
func (l *Locker[K, V]) Release(key K, owner *namereg.Owner) {
	l.reg.Del(key, owner)
}

// Do acquires key, runs fn, and releases the key afterwards. It creates
// a dedicated owner for the critical section and terminates it on every
// exit path, so the key is released even if fn panics.
func (l *Locker[K, V]) Do(ctx context.Context, key K, value V, fn func(ctx context.Context) error) error {
	owner := namereg.NewOwner(fmt.Sprintf("lock:%s", config.Str(key)))
	defer owner.Terminate()

	if err := l.Acquire(ctx, key, value, owner); err != nil {
		return err
	}
	defer l.Release(key, owner)

	return fn(ctx)
}

// retryable reports whether an acquisition error is worth another
// attempt. Conflicts and timeouts are; cancellation and shutdown are
// not.
func retryable(err error) bool {
	return errors.Is(err, namereg.ErrConflict) || errors.Is(err, namereg.ErrTimeout)
}

func jittered(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * jitter * float64(d)
	return time.Duration(float64(d) + delta)
}
