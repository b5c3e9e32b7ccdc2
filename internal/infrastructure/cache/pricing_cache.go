package cache

import (
	"sync"
	"sync/atomic"
	"time"

	appdiscount "github.com/bizzytrack/backend/internal/application/discount"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPricingTTL      = 5 * time.Minute
	defaultCleanupInterval = 30 * time.Second
)

// pricingEntry wraps a cached pricing result with its expiry and owning
// tenant, so tenant-wide invalidation can find it
type pricingEntry struct {
	result    *appdiscount.PricingResult
	tenantID  uuid.UUID
	expiresAt time.Time
}

func (e *pricingEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryPricingCache caches pricing results per canonical context key
// with a TTL. Rule changes invalidate a whole tenant at once; individual
// entries also age out via the background cleanup goroutine.
type InMemoryPricingCache struct {
	entries sync.Map // map[string]*pricingEntry
	ttl     time.Duration
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

// InMemoryPricingCacheOption is a functional option for configuring the cache
type InMemoryPricingCacheOption func(*InMemoryPricingCache)

// WithPricingTTL sets the entry time-to-live
func WithPricingTTL(ttl time.Duration) InMemoryPricingCacheOption {
	return func(c *InMemoryPricingCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPricingLogger sets the logger for the cache
func WithPricingLogger(logger *zap.Logger) InMemoryPricingCacheOption {
	return func(c *InMemoryPricingCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewInMemoryPricingCache creates a new in-memory pricing result cache
func NewInMemoryPricingCache(opts ...InMemoryPricingCacheOption) *InMemoryPricingCache {
	cache := &InMemoryPricingCache{
		ttl:    defaultPricingTTL,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// Get retrieves a cached pricing result
func (c *InMemoryPricingCache) Get(key string) (*appdiscount.PricingResult, bool) {
	if value, ok := c.entries.Load(key); ok {
		entry := value.(*pricingEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("pricing cache hit", zap.String("key", key))
			return entry.result, true
		}
		c.entries.Delete(key)
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("pricing cache miss", zap.String("key", key))
	return nil, false
}

// Set stores a pricing result under its canonical context key
func (c *InMemoryPricingCache) Set(tenantID uuid.UUID, key string, result *appdiscount.PricingResult) {
	if result == nil {
		return
	}
	c.entries.Store(key, &pricingEntry{
		result:    result,
		tenantID:  tenantID,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// InvalidateTenant drops every cached result belonging to the tenant
func (c *InMemoryPricingCache) InvalidateTenant(tenantID uuid.UUID) {
	var removed int
	c.entries.Range(func(key, value any) bool {
		if value.(*pricingEntry).tenantID == tenantID {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	c.logger.Debug("invalidated tenant pricing cache",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("removed", removed))
}

// Close stops the cleanup goroutine
func (c *InMemoryPricingCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns cache hit and miss counters
func (c *InMemoryPricingCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Count returns the number of live entries
func (c *InMemoryPricingCache) Count() int {
	var n int
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *InMemoryPricingCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("panic in pricing cache cleanup", zap.Any("panic", r))
					}
				}()
				c.doCleanup()
			}()
		}
	}
}

func (c *InMemoryPricingCache) doCleanup() {
	var removed int
	c.entries.Range(func(key, value any) bool {
		if value.(*pricingEntry).isExpired() {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("cleaned up expired pricing cache entries", zap.Int("removed", removed))
	}
}

// Ensure InMemoryPricingCache implements PricingCache
var _ appdiscount.PricingCache = (*InMemoryPricingCache)(nil)
