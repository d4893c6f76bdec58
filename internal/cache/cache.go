// Package cache holds the reconciled dataset behind a TTL so dashboard
// requests within the window reuse one snapshot instead of re-fetching the
// remote store.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"farmdash/internal/fetch"
	"farmdash/internal/metrics"
	"farmdash/internal/reconcile"
	"farmdash/internal/records"
	"farmdash/internal/source"
)

// DefaultTTL is how long a snapshot stays fresh.
const DefaultTTL = 5 * time.Minute

// Dataset is one immutable snapshot: the reconciled summary, the raw
// traceability table the event-level views need, and when it was fetched.
type Dataset struct {
	Summary   []reconcile.FarmerSummary
	Trace     records.Table
	FetchedAt time.Time
}

// RefreshFunc produces a fresh dataset. The FetchedAt field is stamped by the
// cache.
type RefreshFunc func(ctx context.Context) (*Dataset, error)

// Cache serves the latest dataset, refreshing it when the TTL lapses.
// Concurrent cache misses collapse into a single refresh; the stragglers
// share its result. Failed refreshes are never cached, so the next request
// retries.
type Cache struct {
	refresh RefreshFunc
	ttl     time.Duration
	now     func() time.Time // injectable for tests

	flight singleflight.Group

	mu  sync.RWMutex
	cur *Dataset
}

// New constructs a Cache around refresh. A non-positive ttl falls back to
// DefaultTTL.
func New(refresh RefreshFunc, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{refresh: refresh, ttl: ttl, now: time.Now}
}

// NewFromSource wires the standard refresh path: page both tables out of src
// and reconcile them with pipe.
func NewFromSource(src source.Source, pageSize int, pipe reconcile.Pipeline, ttl time.Duration) *Cache {
	loader := fetch.NewLoader(src, pageSize)
	return New(func(ctx context.Context) (*Dataset, error) {
		farmers, trace, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		return &Dataset{Summary: pipe.Reconcile(farmers, trace), Trace: trace}, nil
	}, ttl)
}

// Get returns the current dataset, refreshing first if the snapshot is stale
// or absent. On refresh failure no previous snapshot is substituted; the
// error surfaces to the caller.
func (c *Cache) Get(ctx context.Context) (*Dataset, error) {
	if d := c.fresh(); d != nil {
		return d, nil
	}

	v, err, _ := c.flight.Do("dataset", func() (any, error) {
		// A concurrent caller may have refreshed while we queued.
		if d := c.fresh(); d != nil {
			return d, nil
		}

		start := c.now()
		d, err := c.refresh(ctx)
		metrics.RecordRefresh(err, c.now().Sub(start))
		if err != nil {
			return nil, err
		}

		d.FetchedAt = c.now()
		c.mu.Lock()
		c.cur = d
		c.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// Invalidate drops the current snapshot so the next Get refreshes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
}

// fresh returns the snapshot if one exists and its TTL has not lapsed.
func (c *Cache) fresh() *Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cur == nil || c.now().Sub(c.cur.FetchedAt) >= c.ttl {
		return nil
	}
	return c.cur
}
