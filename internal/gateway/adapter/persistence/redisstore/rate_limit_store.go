package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"codes-api/internal/gateway/domain/model"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "codes-api:ratelimit:"

// slidingWindowScript counts a request against the current window, weighting
// the previous window by the share of it still inside the sliding interval.
// Check and increment run atomically, so replicas sharing a Redis never admit
// more than limit requests between them.
var slidingWindowScript = redis.NewScript(`
	local curr_key = KEYS[1]
	local prev_key = KEYS[2]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])    -- window length in ms
	local elapsed = tonumber(ARGV[3])   -- ms since the current window started

	local curr = tonumber(redis.call('GET', curr_key) or '0')
	local prev = tonumber(redis.call('GET', prev_key) or '0')

	local weight = (window - elapsed) / window
	local rate = math.floor(prev * weight) + curr

	if rate >= limit then
		return {0, 0}
	end

	redis.call('INCR', curr_key)
	redis.call('PEXPIRE', curr_key, window * 2)

	return {1, limit - rate - 1}
`)

// RateLimitStore keeps sliding-window request counters in Redis so every
// gateway replica enforces one shared limit per client.
type RateLimitStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRateLimitStore wraps client. Keys are namespaced under prefix; an empty
// prefix selects the default.
func NewRateLimitStore(client *redis.Client, prefix string) *RateLimitStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RateLimitStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// NewClientFromURL parses a redis:// or rediss:// URL and applies the pool
// timeouts used across the service.
func NewClientFromURL(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second
	opts.ConnMaxIdleTime = 30 * time.Minute
	opts.ConnMaxLifetime = time.Hour
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	return redis.NewClient(opts), nil
}

// Allow records one request for key. Windows are aligned to wall-clock
// multiples of window, so replicas agree on window boundaries.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*model.RateLimitDecision, error) {
	windowMs := window.Milliseconds()
	if windowMs <= 0 || limit <= 0 {
		return nil, fmt.Errorf("invalid rate limit: %d per %s", limit, window)
	}

	nowMs := s.now().UnixMilli()
	index := nowMs / windowMs
	elapsed := nowMs % windowMs

	keys := []string{s.windowKey(key, index), s.windowKey(key, index-1)}
	res, err := slidingWindowScript.Run(ctx, s.client, keys, limit, windowMs, elapsed).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	return &model.RateLimitDecision{
		Allowed:    res[0] == 1,
		Limit:      limit,
		Remaining:  int(res[1]),
		ResetAfter: time.Duration(windowMs-elapsed) * time.Millisecond,
	}, nil
}

func (s *RateLimitStore) windowKey(key string, index int64) string {
	return s.prefix + key + ":" + strconv.FormatInt(index, 10)
}

// Close closes the underlying client.
func (s *RateLimitStore) Close() error {
	return s.client.Close()
}

// Name identifies the store in health reports.
func (s *RateLimitStore) Name() string {
	return "redis"
}

// Ping checks the Redis connection.
func (s *RateLimitStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
