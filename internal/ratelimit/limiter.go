// Package ratelimit implements a sliding-window request limiter keyed by
// client identity.
//
// The check is read-then-write: trim, count, then record. It is not atomic,
// so concurrent requests from one identity can both be admitted when the
// budget has a single slot left. The limit is a soft bound.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable wraps store failures. Callers decide whether to fail open or closed.
var ErrUnavailable = errors.New("rate limit store unavailable")

// Store defines the persistence operations required to enforce sliding-window limits.
type Store interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// Rule is a named budget of Limit requests per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	// FailOpen admits requests when the store cannot be reached.
	FailOpen bool
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter evaluates rules against a Store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// New builds a Limiter.
func New(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Allow checks identity against rule and, when admitted, records the request.
// Denied requests are not recorded.
func (l *Limiter) Allow(ctx context.Context, rule Rule, identity string) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true, Limit: rule.Limit}, nil
	}

	now := l.now()
	key := rule.Name + ":" + identity

	if err := l.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	count, err := l.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	oldest, hasAttempts, err := l.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	d := Decision{
		Allowed: true,
		Limit:   rule.Limit,
		Reset:   now.Add(rule.Window),
	}
	if hasAttempts {
		d.Reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		d.Allowed = false
		d.RetryAfter = d.Reset.Sub(now)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
		return d, nil
	}

	if err := l.store.RecordAttempt(ctx, key, now); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	d.Remaining = rule.Limit - count - 1
	return d, nil
}
