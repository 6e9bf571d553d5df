package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"patient-portal-server/internal/domain"
)

// Terminal statuses are absorbing, so a cached snapshot can never go stale
// in a way the client would observe. Pending payments are never cached.
const terminalExpiry = 24 * time.Hour

// StatusCache short-circuits status polls for payments that already reached
// a terminal state. A nil *StatusCache is a no-op.
type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(addr, password string, db int) *StatusCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &StatusCache{client: rdb}
}

type snapshot struct {
	Payment domain.Payment `json:"payment"`
}

func key(ref string) string { return fmt.Sprintf("payment:%s", ref) }

// Get returns the cached payment, or nil on a miss (or when disabled).
func (c *StatusCache) Get(ctx context.Context, ref string) *domain.Payment {
	if c == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, key(ref)).Result()
	if err != nil {
		return nil // miss and transport errors both fall through to the DB
	}
	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil
	}
	return &s.Payment
}

// SetTerminal caches a payment that has reached a terminal status.
func (c *StatusCache) SetTerminal(ctx context.Context, p *domain.Payment) {
	if c == nil || !p.Status.Terminal() {
		return
	}
	raw, err := json.Marshal(snapshot{Payment: *p})
	if err != nil {
		return
	}
	c.client.Set(ctx, key(p.ID), raw, terminalExpiry)
}
