package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertsCache keeps the low-stock dashboard payload in Redis so repeated
// dashboard polls do not hammer the database. Entries are invalidated on
// every stock mutation, the TTL only bounds staleness when invalidation
// is missed (e.g. another process mutated stock).
type AlertsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAlertsCache constructs the cache.
func NewAlertsCache(client *redis.Client, ttl time.Duration) *AlertsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AlertsCache{client: client, ttl: ttl}
}

func alertsKey(tenantID int64) string {
	return fmt.Sprintf("inventory:alerts:%d", tenantID)
}

// Get returns the cached alerts and whether the key was present.
func (c *AlertsCache) Get(ctx context.Context, tenantID int64) ([]LowStockAlert, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, alertsKey(tenantID)).Bytes()
	if err != nil {
		return nil, false
	}
	var alerts []LowStockAlert
	if err := json.Unmarshal(data, &alerts); err != nil {
		return nil, false
	}
	return alerts, true
}

// Set stores the alerts payload. Failures are swallowed: the cache is an
// optimisation, never a source of truth.
func (c *AlertsCache) Set(ctx context.Context, tenantID int64, alerts []LowStockAlert) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(alerts)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, alertsKey(tenantID), data, c.ttl).Err()
}

// Invalidate drops the tenant's cached payload.
func (c *AlertsCache) Invalidate(ctx context.Context, tenantID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, alertsKey(tenantID)).Err()
}
