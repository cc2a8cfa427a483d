package scan

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore remembers when a code was last accepted. Recent must not
// refresh the stamp; a rejected scan has zero side effects.
type CooldownStore interface {
	Recent(ctx context.Context, code string) (bool, error)
	Touch(ctx context.Context, code string) error
}

// RedisCooldown keeps stamps in Redis so every server instance sees the same
// window. Keys expire on their own; nothing to sweep.
type RedisCooldown struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// NewRedisCooldown creates a store with the given window.
func NewRedisCooldown(client *redis.Client, window time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, window: window, prefix: "frontdesk:cooldown:"}
}

// Recent reports whether the code was accepted within the window.
func (c *RedisCooldown) Recent(ctx context.Context, code string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+code).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Touch records an accepted scan.
func (c *RedisCooldown) Touch(ctx context.Context, code string) error {
	return c.client.Set(ctx, c.prefix+code, 1, c.window).Err()
}

// MemoryCooldown is the dev/test backend; correct only for a single process.
type MemoryCooldown struct {
	mu     sync.Mutex
	window time.Duration
	stamps map[string]time.Time
	now    func() time.Time
}

// NewMemoryCooldown creates an in-process store.
func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	return &MemoryCooldown{
		window: window,
		stamps: make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetClock overrides the time source for tests.
func (c *MemoryCooldown) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Recent reports whether the code was accepted within the window.
func (c *MemoryCooldown) Recent(_ context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stamp, ok := c.stamps[code]
	if !ok {
		return false, nil
	}
	if c.now().Sub(stamp) >= c.window {
		delete(c.stamps, code)
		return false, nil
	}
	return true, nil
}

// Touch records an accepted scan.
func (c *MemoryCooldown) Touch(_ context.Context, code string) error {
	c.mu.Lock()
	c.stamps[code] = c.now()
	c.mu.Unlock()
	return nil
}
