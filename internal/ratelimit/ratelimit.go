// Package ratelimit is a fixed-window attempt counter with an optional block
// extension, kept in a TTL cache shared across requests. It guards the auth
// endpoints (login, register, refresh).
//
// The limiter fails open: when the backing cache is unavailable it logs and
// answers "not blocked" instead of denying traffic. The get-modify-set cycle
// is not atomic, so concurrent bursts on one key can lose increments; callers
// needing a hard bound should move to an atomic counter in the cache.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	logger = log.With().Str("component", "ratelimit").Logger()
)

// ErrBadOptions reports malformed limiter options. It is the only error
// Check and Increment return; cache trouble never surfaces to callers.
var ErrBadOptions = errors.New("invalid rate limit options")

// Counter is the per-key window state stored in the cache.
type Counter struct {
	Count        int       `json:"count"`
	CreatedAt    time.Time `json:"created_at"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

type Options struct {
	Key         string
	MaxAttempts int
	Window      time.Duration
	// BlockFor extends the lockout past the window once MaxAttempts is
	// exceeded. Zero means no extension.
	BlockFor time.Duration
}

func (o *Options) validate() error {
	if o.Key == "" {
		return fmt.Errorf("%w: empty key", ErrBadOptions)
	}
	// MaxAttempts == 0 is legal: every attempt is over the limit.
	if o.MaxAttempts < 0 {
		return fmt.Errorf("%w: negative max attempts", ErrBadOptions)
	}
	if o.Window <= 0 {
		return fmt.Errorf("%w: non-positive window", ErrBadOptions)
	}
	if o.BlockFor < 0 {
		return fmt.Errorf("%w: negative block duration", ErrBadOptions)
	}
	return nil
}

type Result struct {
	Remaining int
	Blocked   bool
	ResetAt   time.Time
}

// RetryAfter is how long until ResetAt; never negative.
func (r *Result) RetryAfter() time.Duration {
	d := time.Until(r.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// Cache is the TTL key-value store behind the limiter. Implementations must
// evict entries on their own once the TTL passes.
type Cache interface {
	Get(ctx context.Context, key string) (*Counter, bool, error)
	SetWithTTL(ctx context.Context, key string, counter *Counter, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Limiter struct {
	cache Cache
}

func New(cache Cache) *Limiter {
	return &Limiter{cache: cache}
}

// Check reads the current state for a key without consuming an attempt.
// Absent state counts as a full window.
func (l *Limiter) Check(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	counter, found, err := l.cache.Get(ctx, opts.Key)
	if err != nil {
		logger.Error().Err(err).Str("key", opts.Key).Msg("Rate limit cache read failed, failing open")
		return openResult(opts, now), nil
	}
	if !found {
		return openResult(opts, now), nil
	}

	if counter.BlockedUntil.After(now) {
		return &Result{Remaining: 0, Blocked: true, ResetAt: counter.BlockedUntil}, nil
	}

	if counter.CreatedAt.Add(opts.Window).Before(now) {
		// window elapsed, next increment starts fresh
		return openResult(opts, now), nil
	}

	return &Result{
		Remaining: remaining(opts.MaxAttempts, counter.Count),
		Blocked:   counter.Count > opts.MaxAttempts,
		ResetAt:   resetAt(counter, opts.Window),
	}, nil
}

// Increment consumes one attempt for a key and reports the resulting state.
func (l *Limiter) Increment(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	counter, found, err := l.cache.Get(ctx, opts.Key)
	if err != nil {
		logger.Error().Err(err).Str("key", opts.Key).Msg("Rate limit cache read failed, failing open")
		return openResult(opts, now), nil
	}
	if !found {
		counter = &Counter{CreatedAt: now}
	} else {
		// work on a copy, the memory cache hands out shared pointers
		cp := *counter
		counter = &cp
	}

	// A blocked caller does not get to use up more of the window.
	if counter.BlockedUntil.After(now) {
		return &Result{Remaining: 0, Blocked: true, ResetAt: counter.BlockedUntil}, nil
	}

	if counter.CreatedAt.Add(opts.Window).Before(now) {
		// new window
		counter.Count = 0
		counter.CreatedAt = now
		counter.BlockedUntil = time.Time{}
	}

	counter.Count++
	if counter.Count > opts.MaxAttempts && opts.BlockFor > 0 {
		counter.BlockedUntil = now.Add(opts.BlockFor)
		logger.Warn().
			Str("key", opts.Key).
			Int("count", counter.Count).
			Int("max_attempts", opts.MaxAttempts).
			Time("blocked_until", counter.BlockedUntil).
			Msg("Rate limit exceeded, blocking key")
	}

	// The record must outlive whichever of window or block is still active.
	ttl := time.Until(counter.CreatedAt.Add(opts.Window))
	if blockTTL := time.Until(counter.BlockedUntil); blockTTL > ttl {
		ttl = blockTTL
	}

	if err := l.cache.SetWithTTL(ctx, opts.Key, counter, ttl); err != nil {
		logger.Error().Err(err).Str("key", opts.Key).Msg("Rate limit cache write failed, failing open")
		return openResult(opts, now), nil
	}

	return &Result{
		Remaining: remaining(opts.MaxAttempts, counter.Count),
		Blocked:   counter.Count > opts.MaxAttempts,
		ResetAt:   resetAt(counter, opts.Window),
	}, nil
}

// Reset drops all state for a key, typically after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}

func openResult(opts Options, now time.Time) *Result {
	return &Result{
		Remaining: opts.MaxAttempts,
		Blocked:   false,
		ResetAt:   now.Add(opts.Window),
	}
}

func remaining(maxAttempts, count int) int {
	if count >= maxAttempts {
		return 0
	}
	return maxAttempts - count
}

func resetAt(counter *Counter, window time.Duration) time.Time {
	at := counter.CreatedAt.Add(window)
	if counter.BlockedUntil.After(at) {
		at = counter.BlockedUntil
	}
	return at
}
