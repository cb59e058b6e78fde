// Package ratelimit enforces fixed-window request limits per (class,
// identity) key with a post-limit block. Fixed windows trade boundary-burst
// precision for O(1) memory per key; the blocking behavior is the security
// property being enforced.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/pathlight-platform/gatekeeper/internal/metrics"
)

// State is the window state after recording one request.
type State struct {
	Count int
	// Blocked is set while the key is inside its block duration.
	Blocked bool
	// JustBlocked is set only on the call that transitioned the key into the
	// blocked state; that transition is the one that gets audited.
	JustBlocked bool
	RetryAfter  time.Duration
}

// Store records requests atomically. Implementations must make the
// increment-and-compare a single atomic step even under concurrent handlers.
type Store interface {
	Take(ctx context.Context, key string, rule Rule, now time.Time) (State, error)
	Close() error
}

// Decision is the limiter's verdict for a single request.
type Decision struct {
	Allowed     bool
	Remaining   int
	RetryAfter  time.Duration
	JustBlocked bool
}

// Limiter checks requests against the policy using a pluggable store.
type Limiter struct {
	store    Store
	policy   Policy
	disabled bool
}

// New constructs a Limiter. A disabled limiter allows everything.
func New(store Store, policy Policy, disabled bool) *Limiter {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Limiter{store: store, policy: policy, disabled: disabled}
}

// Check records one request for identity under class and returns the verdict.
// A store failure is returned to the caller; the admission gate decides
// whether to fail open or closed.
func (l *Limiter) Check(ctx context.Context, class Class, identity string) (Decision, error) {
	if l.disabled {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	rule, ok := l.policy[class]
	if !ok {
		return Decision{}, fmt.Errorf("unknown rate limit class %q", class)
	}

	state, err := l.store.Take(ctx, string(class)+":"+identity, rule, time.Now())
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	if state.Blocked {
		metrics.RateLimitHits.WithLabelValues(string(class)).Inc()
		return Decision{
			Allowed:     false,
			Remaining:   0,
			RetryAfter:  state.RetryAfter,
			JustBlocked: state.JustBlocked,
		}, nil
	}

	remaining := rule.Requests - state.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

// Rule returns the configured rule for class, if any.
func (l *Limiter) Rule(class Class) (Rule, bool) {
	rule, ok := l.policy[class]
	return rule, ok
}

// Close releases the underlying store.
func (l *Limiter) Close() error {
	if l.store != nil {
		return l.store.Close()
	}
	return nil
}
