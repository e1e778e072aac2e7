package ledger

import (
	"context"
	"strconv"
	"time"

	"feeledger/internal/cache"
	"feeledger/internal/core"
)

// CachedAggregator memoizes group and tenant ledgers per tenant. Writers call
// Invalidate after changing a tenant's members, structures or records.
type CachedAggregator struct {
	*Aggregator
	groups  *cache.LRUCache[GroupLedger]
	tenants *cache.LRUCache[TenantLedger]
}

func NewCachedAggregator(a *Aggregator, maxEntries int, ttl time.Duration) *CachedAggregator {
	return &CachedAggregator{
		Aggregator: a,
		groups:     cache.NewLRUCache[GroupLedger](maxEntries, ttl),
		tenants:    cache.NewLRUCache[TenantLedger](maxEntries, ttl),
	}
}

func tenantPrefix(tenantID string) string {
	return tenantID + "\x00"
}

func cacheKey(tenantID string, sessionYear int, st core.StructureType, groupID string) string {
	return tenantPrefix(tenantID) + strconv.Itoa(sessionYear) + "\x00" + string(st) + "\x00" + groupID
}

func (c *CachedAggregator) AggregateGroup(ctx context.Context, tenantID, groupID string, sessionYear int, st core.StructureType) (GroupLedger, error) {
	key := cacheKey(tenantID, sessionYear, st, groupID)
	if gl, ok := c.groups.Get(key); ok {
		return gl, nil
	}
	gl, err := c.Aggregator.AggregateGroup(ctx, tenantID, groupID, sessionYear, st)
	if err != nil {
		return GroupLedger{}, err
	}
	c.groups.Set(key, gl)
	return gl, nil
}

func (c *CachedAggregator) AggregateTenant(ctx context.Context, tenantID string, sessionYear int, st core.StructureType) (TenantLedger, error) {
	key := cacheKey(tenantID, sessionYear, st, "")
	if tl, ok := c.tenants.Get(key); ok {
		return tl, nil
	}
	tl, err := c.Aggregator.AggregateTenant(ctx, tenantID, sessionYear, st)
	if err != nil {
		return TenantLedger{}, err
	}
	c.tenants.Set(key, tl)
	return tl, nil
}

// Invalidate drops every cached ledger of tenantID.
func (c *CachedAggregator) Invalidate(tenantID string) {
	c.groups.DeletePrefix(tenantPrefix(tenantID))
	c.tenants.DeletePrefix(tenantPrefix(tenantID))
}

// Cleaners returns the caches for periodic expiry.
func (c *CachedAggregator) Cleaners() []cache.Cleaner {
	return []cache.Cleaner{c.groups, c.tenants}
}
