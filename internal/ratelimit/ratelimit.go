// Package ratelimit throttles login attempts per client key.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const maxIdle = 24 * time.Hour

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory keeps one token bucket per key in process memory. A bucket idle long
// enough to have refilled completely is dropped, since a new one is
// indistinguishable from it.
type Memory struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rps       float64
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemory(rps float64, burst int) *Memory {
	// buckets idle for a day are dropped even at rates that refill slower
	idle := time.Minute
	if rps > 0 {
		refill := min(float64(max(burst, 1))/rps, maxIdle.Seconds())
		idle = max(idle, time.Duration(refill*float64(time.Second)))
	}
	return &Memory{
		buckets:   make(map[string]*bucket),
		rps:       rps,
		burst:     burst,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= m.idle {
		m.sweep(now)
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(m.rps), m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1), nil
}

func (m *Memory) sweep(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) >= m.idle {
			delete(m.buckets, key)
		}
	}
	m.lastSweep = now
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Redis is a fixed-window counter shared by every server instance using the
// same Redis. A window allows floor(rps*window)+burst attempts per key.
type Redis struct {
	client  redis.Cmdable
	window  time.Duration
	allowed int64
	prefix  string
}

func NewRedis(client redis.Cmdable, rps float64, burst int, window time.Duration) *Redis {
	if window < time.Second {
		window = time.Second
	}
	return &Redis{
		client:  client,
		window:  window,
		allowed: int64(rps*window.Seconds()) + int64(burst),
		prefix:  "notepad:rl:",
	}
}

// Allow creates the window key with its expiry and counts the attempt in one
// transaction, so a key never outlives its window.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := r.prefix + key

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, r.window)
		incr = pipe.Incr(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("count attempt %s: %w", redisKey, err)
	}

	return incr.Val() <= r.allowed, nil
}
