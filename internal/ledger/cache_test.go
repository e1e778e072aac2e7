package ledger

import (
	"context"
	"testing"
	"time"

	"feeledger/internal/core"
	"feeledger/internal/session"
)

type countingSource struct {
	fakeSource
	groupLoads int
}

func (c *countingSource) ListGroups(ctx context.Context, tenantID string) ([]core.Group, error) {
	c.groupLoads++
	return c.fakeSource.ListGroups(ctx, tenantID)
}

func TestCachedAggregatorReusesResultsUntilInvalidated(t *testing.T) {
	src := &countingSource{fakeSource: fixture()}
	cached := NewCachedAggregator(NewAggregator(src, session.Default(), PaidWindowSession), 16, time.Minute)
	ctx := context.Background()

	first, err := cached.AggregateTenant(ctx, "t1", 2025, core.StructureFee)
	if err != nil {
		t.Fatalf("AggregateTenant() error = %v", err)
	}
	second, err := cached.AggregateTenant(ctx, "t1", 2025, core.StructureFee)
	if err != nil {
		t.Fatalf("AggregateTenant() error = %v", err)
	}
	if src.groupLoads != 1 {
		t.Errorf("groupLoads = %d, want 1 (second call cached)", src.groupLoads)
	}
	if !first.Expected.Equal(second.Expected) {
		t.Errorf("cached result differs: %s vs %s", first.Expected, second.Expected)
	}

	if _, err := cached.AggregateTenant(ctx, "t1", 2025, core.StructureSalary); err != nil {
		t.Fatal(err)
	}
	if src.groupLoads != 2 {
		t.Errorf("different structure type must miss, groupLoads = %d", src.groupLoads)
	}

	cached.Invalidate("t1")
	if _, err := cached.AggregateTenant(ctx, "t1", 2025, core.StructureFee); err != nil {
		t.Fatal(err)
	}
	if src.groupLoads != 3 {
		t.Errorf("invalidated tenant must reload, groupLoads = %d", src.groupLoads)
	}
}

func TestCachedAggregatorDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{fakeSource: fixture()}
	cached := NewCachedAggregator(NewAggregator(src, session.Default(), PaidWindowSession), 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cached.AggregateGroup(ctx, "t1", "missing", 2025, core.StructureFee); !core.IsKind(err, core.KindNotFound) {
			t.Fatalf("AggregateGroup() error = %v, want not found", err)
		}
	}
	if src.groupLoads != 2 {
		t.Errorf("errors must not be cached, groupLoads = %d", src.groupLoads)
	}
	if len(cached.Cleaners()) != 2 {
		t.Errorf("Cleaners() = %d, want 2", len(cached.Cleaners()))
	}
}
