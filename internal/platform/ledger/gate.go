package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDigestInterval is the minimum spacing between digest runs.
const DefaultDigestInterval = 60 * time.Second

// Gate rate-limits digest runs. It exists to protect against accidental
// rapid re-invocation, not as a correctness-critical lock.
type Gate interface {
	// Allow reports whether a run may proceed now, and if so claims the slot.
	Allow(ctx context.Context) bool
}

// MemoryGate is the process-local gate: a throttle timestamp that resets on
// restart and provides no cross-process coordination.
type MemoryGate struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
	clock    func() time.Time
}

func NewMemoryGate(interval time.Duration) *MemoryGate {
	if interval <= 0 {
		interval = DefaultDigestInterval
	}
	return &MemoryGate{interval: interval, clock: time.Now}
}

func (g *MemoryGate) Allow(_ context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	if !g.last.IsZero() && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}

// RedisGate coordinates the digest interval across processes with a single
// SET NX PX key. Redis being unreachable fails open: the digest's purpose is
// detection, and a missed throttle is preferable to a missed digest.
type RedisGate struct {
	client   *redis.Client
	key      string
	interval time.Duration
}

func NewRedisGate(client *redis.Client, key string, interval time.Duration) *RedisGate {
	if interval <= 0 {
		interval = DefaultDigestInterval
	}
	if key == "" {
		key = "interex:audit:digest_gate"
	}
	return &RedisGate{client: client, key: key, interval: interval}
}

func (g *RedisGate) Allow(ctx context.Context) bool {
	ok, err := g.client.SetNX(ctx, g.key, time.Now().UTC().Unix(), g.interval).Result()
	if err != nil {
		return true
	}
	return ok
}
