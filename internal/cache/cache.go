package cache

import (
	"context"
	"time"

	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
)

// Cache defines a generic cache interface
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, data V)
	Delete(key K)
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// ViewKey identifies one projection of one snapshot.
type ViewKey struct {
	Version uint64
	GroupBy core.GroupKey
}

// ViewCache memoizes grouped views. Projections are pure, so an entry stays
// valid for as long as its snapshot version is current.
type ViewCache struct {
	lru     *LRUCache[ViewKey, []core.GroupView]
	metrics *metrics.Metrics
}

var _ Cache[ViewKey, []core.GroupView] = (*LRUCache[ViewKey, []core.GroupView])(nil)

func NewViewCache(maxSize int, ttl time.Duration, m *metrics.Metrics) *ViewCache {
	return &ViewCache{lru: NewLRUCache[ViewKey, []core.GroupView](maxSize, ttl), metrics: m}
}

// Get returns the cached view or projects records and caches the result.
func (c *ViewCache) Get(version uint64, key core.GroupKey, records []core.GiftRecord) []core.GroupView {
	k := ViewKey{Version: version, GroupBy: key}
	if v, ok := c.lru.Get(k); ok {
		c.observe("hit")
		return v
	}
	c.observe("miss")
	v := core.ProjectGroupedView(records, key)
	c.lru.Set(k, v)
	return v
}

// Invalidate drops every view of snapshots older than version.
func (c *ViewCache) Invalidate(version uint64) int {
	return c.lru.DeleteFunc(func(k ViewKey) bool { return k.Version < version })
}

func (c *ViewCache) CleanExpired() int { return c.lru.CleanExpired() }

func (c *ViewCache) Size() int { return c.lru.Size() }

func (c *ViewCache) observe(result string) {
	if c.metrics != nil {
		c.metrics.ViewCache.WithLabelValues(result).Inc()
	}
}

// Manager periodically sweeps expired entries from registered caches.
type Manager struct {
	caches []Cleaner
	logger *log.Logger
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// Sweep cleans every registered cache once and returns the number of
// entries removed.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		}
	}
}
