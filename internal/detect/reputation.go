package detect

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// reputationTTL bounds growth of the failure counters and the suspicious
// set: entries expire 24 hours after their last update.
const reputationTTL = 24 * time.Hour

// suspicionThreshold is the cumulative failure count at which a source IP
// joins the suspicious set.
const suspicionThreshold = 5

// ReputationStore tracks authentication failures and flagged source IPs.
// Implementations must be safe for concurrent handlers.
type ReputationStore interface {
	// RecordFailure increments the failure counter for ip and returns the new
	// count. Crossing the suspicion threshold flags the IP.
	RecordFailure(ctx context.Context, ip string) (int, error)
	Failures(ctx context.Context, ip string) (int, error)
	IsSuspicious(ctx context.Context, ip string) (bool, error)
	Close() error
}

type failureEntry struct {
	count   int
	updated time.Time
}

// MemoryReputationStore is the single-instance implementation: a
// mutex-guarded failure map and suspicious set with lazy expiry.
type MemoryReputationStore struct {
	mu         sync.Mutex
	failures   map[string]*failureEntry
	suspicious map[string]time.Time
	lastSweep  time.Time
}

func NewMemoryReputationStore() *MemoryReputationStore {
	return &MemoryReputationStore{
		failures:   make(map[string]*failureEntry),
		suspicious: make(map[string]time.Time),
		lastSweep:  time.Now(),
	}
}

func (s *MemoryReputationStore) RecordFailure(ctx context.Context, ip string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweep(now)

	entry, ok := s.failures[ip]
	if !ok || now.Sub(entry.updated) > reputationTTL {
		entry = &failureEntry{}
		s.failures[ip] = entry
	}
	entry.count++
	entry.updated = now

	if entry.count >= suspicionThreshold {
		s.suspicious[ip] = now
	}
	return entry.count, nil
}

func (s *MemoryReputationStore) Failures(ctx context.Context, ip string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.failures[ip]
	if !ok || time.Since(entry.updated) > reputationTTL {
		return 0, nil
	}
	return entry.count, nil
}

func (s *MemoryReputationStore) IsSuspicious(ctx context.Context, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flagged, ok := s.suspicious[ip]
	if !ok {
		return false, nil
	}
	if time.Since(flagged) > reputationTTL {
		delete(s.suspicious, ip)
		return false, nil
	}
	return true, nil
}

// sweep removes expired entries at most once per minute, under the lock.
func (s *MemoryReputationStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	s.lastSweep = now
	for ip, entry := range s.failures {
		if now.Sub(entry.updated) > reputationTTL {
			delete(s.failures, ip)
		}
	}
	for ip, flagged := range s.suspicious {
		if now.Sub(flagged) > reputationTTL {
			delete(s.suspicious, ip)
		}
	}
}

func (s *MemoryReputationStore) Close() error { return nil }

// RedisReputationStore shares failure counts and the suspicious set across
// replicas; expiry rides on key TTLs.
type RedisReputationStore struct {
	client *redis.Client
}

func NewRedisReputationStore(redisURL string) (*RedisReputationStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisReputationStore{client: client}, nil
}

// NewRedisReputationStoreWithClient wraps an existing client (used by tests).
func NewRedisReputationStoreWithClient(client *redis.Client) *RedisReputationStore {
	return &RedisReputationStore{client: client}
}

const recordFailureScript = `
local count = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
if count >= tonumber(ARGV[2]) then
	redis.call('SET', KEYS[2], '1', 'PX', ARGV[1])
end
return count
`

func (s *RedisReputationStore) RecordFailure(ctx context.Context, ip string) (int, error) {
	keys := []string{"reputation:fail:" + ip, "reputation:flag:" + ip}
	count, err := s.client.Eval(ctx, recordFailureScript, keys,
		reputationTTL.Milliseconds(), suspicionThreshold).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to record auth failure: %w", err)
	}
	return count, nil
}

func (s *RedisReputationStore) Failures(ctx context.Context, ip string) (int, error) {
	val, err := s.client.Get(ctx, "reputation:fail:"+ip).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read failure count: %w", err)
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt failure count for %s: %w", ip, err)
	}
	return count, nil
}

func (s *RedisReputationStore) IsSuspicious(ctx context.Context, ip string) (bool, error) {
	n, err := s.client.Exists(ctx, "reputation:flag:"+ip).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check suspicious set: %w", err)
	}
	return n > 0, nil
}

func (s *RedisReputationStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
