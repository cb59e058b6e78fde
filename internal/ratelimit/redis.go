package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript implements the fixed-window increment-and-compare atomically.
// The window key is created by the first request and expires with the window;
// the block key carries the post-limit block via its own TTL.
const takeScript = `
local block_ttl = redis.call('PTTL', KEYS[2])
if block_ttl > 0 then
	return {0, 0, block_ttl}
end

local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end

if count > tonumber(ARGV[2]) then
	redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
	redis.call('DEL', KEYS[1])
	return {0, 1, tonumber(ARGV[3])}
end

return {1, 0, count}
`

// RedisStore shares window state across replicas via atomic Lua evaluation.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
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

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client (used by tests).
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Take(ctx context.Context, key string, rule Rule, now time.Time) (State, error) {
	keys := []string{"ratelimit:" + key, "ratelimit:block:" + key}
	res, err := s.client.Eval(ctx, takeScript, keys,
		rule.Window.Milliseconds(), rule.Requests, rule.BlockDuration.Milliseconds()).Int64Slice()
	if err != nil {
		return State{}, fmt.Errorf("rate limit eval failed: %w", err)
	}
	if len(res) != 3 {
		return State{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	if res[0] == 1 {
		return State{Count: int(res[2])}, nil
	}
	return State{
		Blocked:     true,
		JustBlocked: res[1] == 1,
		RetryAfter:  time.Duration(res[2]) * time.Millisecond,
	}, nil
}

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
