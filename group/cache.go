package group

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// EvictionPolicy selects which entry a full cache evicts.
type EvictionPolicy uint8

const (
	// EvictOldestInserted evicts the entry inserted longest ago. Reads do not
	// change the order.
	EvictOldestInserted EvictionPolicy = iota
	// EvictLeastRecentlyUsed evicts the entry read or written longest ago.
	EvictLeastRecentlyUsed
)

// Fetcher loads metadata for a group on a cache miss. A nil result with a
// nil error means the group was not found.
type Fetcher func(ctx context.Context, id string) (*Metadata, error)

// CacheOptions configures a Cache.
type CacheOptions struct {
	TTL      time.Duration
	Capacity int
	Policy   EvictionPolicy
	// Collapse merges concurrent misses for the same id into one fetch.
	Collapse bool
	Clock    TimeProvider
	Metrics  *Metrics
	// Context bounds collapsed fetches, which outlive any single caller.
	// Nil means context.Background.
	Context context.Context
}

type cacheEntry struct {
	id         string
	metadata   *Metadata
	insertedAt time.Time
}

// Cache is a time- and capacity-bounded store of group metadata.
//
// An entry is fresh while now - insertedAt < TTL. Stale entries read as
// misses and are dropped on access or by Sweep. The cache never holds more
// than Capacity entries.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	policy   EvictionPolicy
	entries  map[string]*list.Element
	// order runs from the next eviction candidate (front) to the most
	// recent insertion (back).
	order   *list.List
	clock   TimeProvider
	flight   *singleflight.Group
	lifetime context.Context
	metrics  *Metrics
}

// NewCache creates an empty cache.
func NewCache(opts CacheOptions) *Cache {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	c := &Cache{
		ttl:      opts.TTL,
		capacity: opts.Capacity,
		policy:   opts.Policy,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		clock:    getTimeProvider(opts.Clock),
		lifetime: opts.Context,
		metrics:  opts.Metrics,
	}
	if c.lifetime == nil {
		c.lifetime = context.Background()
	}
	if opts.Collapse {
		c.flight = &singleflight.Group{}
	}
	return c
}

// Get returns a copy of the fresh entry for id.
func (c *Cache) Get(id string) (*Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		c.metrics.cacheMiss()
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if !c.fresh(entry, c.clock.Now()) {
		c.removeElement(elem)
		c.metrics.cacheMiss()
		return nil, false
	}
	if c.policy == EvictLeastRecentlyUsed {
		c.order.MoveToBack(elem)
	}
	c.metrics.cacheHit()
	return entry.metadata.Clone(), true
}

// Put stores md under id. A full cache first evicts one entry; replacing
// an existing id never evicts and moves it to the back of the order.
func (c *Cache) Put(id string, md *Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(id, md, c.clock.Now())
}

func (c *Cache) putLocked(id string, md *Metadata, now time.Time) {
	if elem, ok := c.entries[id]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.metadata = md.Clone()
		entry.insertedAt = now
		c.order.MoveToBack(elem)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		logrus.WithFields(logrus.Fields{
			"function": "Put",
			"evicted":  oldest.Value.(*cacheEntry).id,
			"capacity": c.capacity,
		}).Debug("Evicting group metadata to stay within capacity")
		c.removeElement(oldest)
		c.metrics.cacheEvicted()
	}

	c.entries[id] = c.order.PushBack(&cacheEntry{
		id:         id,
		metadata:   md.Clone(),
		insertedAt: now,
	})
	c.metrics.setCacheSize(len(c.entries))
}

// Delete drops the entry for id, if any.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[id]; ok {
		c.removeElement(elem)
	}
}

// ReplaceAll discards every entry and stores mds in order. Entries beyond
// capacity evict the earliest of mds, as individual Puts would.
func (c *Cache) ReplaceAll(mds []*Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element, len(mds))
	c.order.Init()

	now := c.clock.Now()
	for _, md := range mds {
		c.putLocked(md.ID, md, now)
	}
	c.metrics.setCacheSize(len(c.entries))
}

// Sweep removes every entry whose age at now is at least the TTL and
// returns how many were removed.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if !c.fresh(elem.Value.(*cacheEntry), now) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	c.metrics.cacheSweptN(removed)
	return removed
}

// Len returns the number of entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the cached ids from next eviction candidate to most recent.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*cacheEntry).id)
	}
	return keys
}

// GetOrFetch returns the fresh entry for id or loads it with fetch. A
// successful fetch is cached; a failed or empty one is not, so the next call
// fetches again.
//
// With Collapse set, concurrent callers share one fetch. The shared fetch
// keeps the values of the caller that started it but not its cancellation;
// it stops only when the cache's Context is done. Each caller still returns
// as soon as its own ctx is done.
func (c *Cache) GetOrFetch(ctx context.Context, id string, fetch Fetcher) (*Metadata, error) {
	if md, ok := c.Get(id); ok {
		return md, nil
	}

	if c.flight == nil {
		return c.fetchAndStore(ctx, id, fetch)
	}

	ch := c.flight.DoChan(id, func() (any, error) {
		fetchCtx, cancel := c.sharedContext(ctx)
		defer cancel()
		return c.fetchAndStore(fetchCtx, id, fetch)
	})

	select {
	case res := <-ch:
		if res.Shared {
			logrus.WithFields(logrus.Fields{
				"function": "GetOrFetch",
				"group_id": id,
			}).Debug("Shared in-flight group metadata fetch")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Metadata).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sharedContext detaches ctx from its caller's cancellation and bounds it by
// the cache lifetime instead.
func (c *Cache) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.lifetime, cancel)
	return shared, func() {
		stop()
		cancel()
	}
}

func (c *Cache) fetchAndStore(ctx context.Context, id string, fetch Fetcher) (*Metadata, error) {
	md, err := fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, nil
	}
	c.Put(id, md)
	return md, nil
}

func (c *Cache) fresh(entry *cacheEntry, now time.Time) bool {
	return now.Sub(entry.insertedAt) < c.ttl
}

func (c *Cache) removeElement(elem *list.Element) {
	delete(c.entries, elem.Value.(*cacheEntry).id)
	c.order.Remove(elem)
	c.metrics.setCacheSize(len(c.entries))
}

// runSweeper sweeps on every tick until stop is closed.
func (c *Cache) runSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := c.Sweep(c.clock.Now())
			logrus.WithFields(logrus.Fields{
				"function": "runSweeper",
				"removed":  removed,
				"entries":  c.Len(),
			}).Debug("Swept stale group metadata")
		case <-stop:
			return
		}
	}
}
