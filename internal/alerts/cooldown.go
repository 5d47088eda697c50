package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore gates repeated fires of the same (rule, item) key.
// Allow returns true when the key is outside its cooldown window and
// records the fire.
type CooldownStore interface {
	Allow(key string, window time.Duration, now time.Time) bool
}

// MemoryCooldowns is the default in-process store; it resets on
// restart.
type MemoryCooldowns struct {
	mu    sync.Mutex
	fired map[string]time.Time
}

func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{fired: make(map[string]time.Time)}
}

func (m *MemoryCooldowns) Allow(key string, window time.Duration, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.fired[key]; ok && now.Sub(last) < window {
		return false
	}
	m.fired[key] = now
	return true
}

// Prune drops keys whose item is gone; liveKey receives the full
// "rule:itemID" cooldown key and reports whether it should be kept.
func (m *MemoryCooldowns) Prune(liveKey func(key string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.fired {
		if !liveKey(key) {
			delete(m.fired, key)
		}
	}
}

// RedisCooldowns mirrors cooldowns into Redis so restarts do not
// re-fire suppressed alerts. Redis being down degrades to allowing the
// fire, matching the in-memory restart behavior.
type RedisCooldowns struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisCooldowns(client *redis.Client) *RedisCooldowns {
	return &RedisCooldowns{
		client: client,
		prefix: "pricewatch:cooldown:",
		logger: slog.Default().With("component", "cooldowns"),
	}
}

func (r *RedisCooldowns) Allow(key string, window time.Duration, now time.Time) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ok, err := r.client.SetNX(ctx, r.prefix+key, now.Unix(), window).Result()
	if err != nil {
		r.logger.Warn("cooldown check failed, allowing fire", "key", key, "error", err)
		return true
	}
	return ok
}
