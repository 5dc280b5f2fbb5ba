package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/batchsumm/orchestrator/internal/model"
)

// queryCacheItem is one cached page, adapted from the teacher's
// QueryCache/queryCacheItem TTL-eviction shape.
type queryCacheItem struct {
	records   []*model.SummaryRecord
	expiresAt time.Time
}

// QueryCache caches ListByUser pages behind a TTL + insertion-order eviction,
// the same shape the teacher used to cache benchmark history pages.
type QueryCache struct {
	mu      sync.RWMutex
	maxSize int
	items   map[string]*queryCacheItem
	order   []string
}

// NewQueryCache builds a cache holding at most maxSize pages.
func NewQueryCache(maxSize int) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &QueryCache{
		maxSize: maxSize,
		items:   make(map[string]*queryCacheItem),
		order:   make([]string, 0, maxSize),
	}
}

func (qc *QueryCache) get(key string) ([]*model.SummaryRecord, bool) {
	qc.mu.RLock()
	defer qc.mu.RUnlock()

	item, found := qc.items[key]
	if !found || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.records, true
}

func (qc *QueryCache) set(key string, records []*model.SummaryRecord, ttl time.Duration) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if _, found := qc.items[key]; !found {
		if len(qc.items) >= qc.maxSize {
			qc.evictOldestLocked()
		}
		qc.order = append(qc.order, key)
	}
	qc.items[key] = &queryCacheItem{records: records, expiresAt: time.Now().Add(ttl)}
}

func (qc *QueryCache) evictOldestLocked() {
	if len(qc.order) == 0 {
		return
	}
	oldest := qc.order[0]
	qc.order = qc.order[1:]
	delete(qc.items, oldest)
}

// Clear removes every cached page.
func (qc *QueryCache) Clear() {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.items = make(map[string]*queryCacheItem)
	qc.order = qc.order[:0]
}

// Size reports the current number of cached pages.
func (qc *QueryCache) Size() int {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	return len(qc.items)
}

const listPageTTL = 1 * time.Minute

// CachedStore wraps a Store with a paginated-listing cache, adapted from the
// teacher's QueryOptimizer: reads prefer the cache, writes invalidate it
// wholesale since any new Save can change every user's first page.
type CachedStore struct {
	Store
	cache *QueryCache
}

// NewCachedStore wraps store with an in-memory page cache of the given size.
func NewCachedStore(store Store, cacheSize int) *CachedStore {
	return &CachedStore{Store: store, cache: NewQueryCache(cacheSize)}
}

// ListByUser serves from cache when possible, falling back to the wrapped
// Store and populating the cache on miss.
func (c *CachedStore) ListByUser(userID string, limit, offset int) ([]*model.SummaryRecord, error) {
	key := fmt.Sprintf("%s:%d:%d", userID, limit, offset)
	if cached, ok := c.cache.get(key); ok {
		return cached, nil
	}

	records, err := c.Store.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, err
	}
	c.cache.set(key, records, listPageTTL)
	return records, nil
}

// Save delegates to the underlying store and, once the write succeeds,
// clears the listing cache, since a new record can shift every cached
// page's contents.
func (c *CachedStore) Save(rec *model.SummaryRecord) error {
	if err := c.Store.Save(rec); err != nil {
		return err
	}
	c.cache.Clear()
	return nil
}

// Cleanup delegates to the underlying store and, once it succeeds, clears
// the listing cache, for the same reason as Save.
func (c *CachedStore) Cleanup(retentionDays int) (int64, error) {
	n, err := c.Store.Cleanup(retentionDays)
	if err != nil {
		return 0, err
	}
	c.cache.Clear()
	return n, nil
}
