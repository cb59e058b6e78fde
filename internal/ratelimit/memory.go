package ratelimit

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// MemoryStore keeps window state in a mutex-guarded map. Suitable for
// single-instance deployments and tests; a horizontally scaled deployment
// needs the Redis store so limits hold across replicas.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*record
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*record),
		lastSweep: time.Now(),
	}
}

func (s *MemoryStore) Take(ctx context.Context, key string, rule Rule, now time.Time) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	rec, ok := s.records[key]
	if !ok {
		rec = &record{count: 0, windowStart: now}
		s.records[key] = rec
	}

	if !rec.blockedUntil.IsZero() {
		if now.Before(rec.blockedUntil) {
			return State{Count: rec.count, Blocked: true, RetryAfter: rec.blockedUntil.Sub(now)}, nil
		}
		// Block expired: the window restarts with this request.
		rec.blockedUntil = time.Time{}
		rec.count = 0
		rec.windowStart = now
	}

	if now.Sub(rec.windowStart) >= rule.Window {
		rec.count = 0
		rec.windowStart = now
	}

	rec.count++
	if rec.count > rule.Requests {
		rec.blockedUntil = now.Add(rule.BlockDuration)
		return State{Count: rec.count, Blocked: true, JustBlocked: true, RetryAfter: rule.BlockDuration}, nil
	}

	return State{Count: rec.count}, nil
}

// sweep drops records whose window and block both elapsed long ago. Runs at
// most once per minute, under the lock.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	s.lastSweep = now
	for key, rec := range s.records {
		stale := now.Sub(rec.windowStart) > 24*time.Hour
		if stale && (rec.blockedUntil.IsZero() || now.After(rec.blockedUntil)) {
			delete(s.records, key)
		}
	}
}

func (s *MemoryStore) Close() error { return nil }
