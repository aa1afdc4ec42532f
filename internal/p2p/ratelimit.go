package p2p

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitTier names one configured class of limit, matching the spec's
// {name, requests_per_window, window_seconds, burst_allowance} shape.
type RateLimitTier struct {
	Name              string
	RequestsPerWindow int
	WindowSeconds     int
	BurstMultiplier   float64 // allowance extends by (burst_multiplier - 1) * base
}

func (t RateLimitTier) window() time.Duration {
	return time.Duration(t.WindowSeconds) * time.Second
}

func (t RateLimitTier) allowance() int {
	base := float64(t.RequestsPerWindow)
	return int(base + (t.BurstMultiplier-1)*base)
}

// counter is one key's windowed request count, reset atomically on expiry.
type counter struct {
	count      int
	windowEnds time.Time
	lastSeen   time.Time
}

// RateLimiter enforces windowed-counter limits per key (an IP, an API key,
// or an "ip:endpoint" composite), tiered by RateLimitTier. When a Redis
// client is configured, every Allow call increments the key's shared Redis
// counter and uses that count; the syncInterval given to NewRateLimiter is
// stored but does not schedule or throttle this traffic. On a Redis error
// it falls back to the purely local counter for that call so admission
// never blocks on a degraded cache.
type RateLimiter struct {
	mu           sync.Mutex
	counters     map[string]*counter
	tier         RateLimitTier
	redisClient  *redis.Client
	syncInterval time.Duration
}

// NewRateLimiter constructs a limiter for a single tier. redisClient may
// be nil, in which case the limiter runs purely locally.
func NewRateLimiter(tier RateLimitTier, redisClient *redis.Client, syncInterval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		counters:     make(map[string]*counter),
		tier:         tier,
		redisClient:  redisClient,
		syncInterval: syncInterval,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow increments key's counter and reports whether the request is
// within the tier's allowance, resetting the window if it has elapsed.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	now := time.Now()

	rl.mu.Lock()
	c, ok := rl.counters[key]
	if !ok || now.After(c.windowEnds) {
		c = &counter{count: 0, windowEnds: now.Add(rl.tier.window())}
		rl.counters[key] = c
	}
	c.count++
	c.lastSeen = now
	localCount := c.count
	rl.mu.Unlock()

	if rl.redisClient != nil {
		if synced, err := rl.syncRemote(ctx, key, rl.tier.window()); err == nil {
			localCount = synced
		} else {
			log.Printf("[p2p.ratelimit] redis coordinator unavailable, falling back to local counters: %v", err)
		}
	}

	return localCount <= rl.tier.allowance()
}

// syncRemote increments a Redis-backed counter for key and returns the
// coordinated count across instances, setting the key's TTL to the
// window on first increment.
func (rl *RateLimiter) syncRemote(ctx context.Context, key string, window time.Duration) (int, error) {
	redisKey := fmt.Sprintf("supernova:ratelimit:%s:%s", rl.tier.Name, key)
	val, err := rl.redisClient.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	if val == 1 {
		if err := rl.redisClient.Expire(ctx, redisKey, window).Err(); err != nil {
			return 0, fmt.Errorf("redis expire: %w", err)
		}
	}
	return int(val), nil
}

// cleanupLoop removes keys idle for more than 2x the tier's window.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.tier.window())
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-2 * rl.tier.window())
		rl.mu.Lock()
		for k, c := range rl.counters {
			if c.lastSeen.Before(cutoff) {
				delete(rl.counters, k)
			}
		}
		rl.mu.Unlock()
	}
}

// CompositeKey builds the "ip:endpoint" key form used for per-endpoint
// limiting.
func CompositeKey(ip, endpoint string) string {
	return ip + ":" + endpoint
}

// ParseBurstMultiplier parses a burst multiplier from a config string,
// defaulting to 1.0 (no burst) on malformed input.
func ParseBurstMultiplier(s string) float64 {
	if s == "" {
		return 1.0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}
	return v
}
