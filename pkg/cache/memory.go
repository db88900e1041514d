package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
	access   time.Time
}

// MemoryCache implements Service in process with LRU eviction. Values are
// stored JSON-encoded so Get behaves like the Redis implementation.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*memoryItem
	maxSize int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache. A positive cleanup interval
// starts a sweeper goroutine that Close stops.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
		Now:             time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:    make(map[string]*memoryItem),
		maxSize: cfg.MaxSize,
		now:     cfg.Now,
		stop:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go mc.cleanup(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := mc.now()

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.data[key]; !ok && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	item := &memoryItem{data: data, access: now}
	if expiration > 0 {
		item.expireAt = now.Add(expiration)
	}
	mc.data[key] = item
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest any) error {
	now := mc.now()

	mc.mu.Lock()
	item, ok := mc.data[key]
	if ok && item.expired(now) {
		delete(mc.data, key)
		ok = false
	}
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	item.access = now
	data := item.data
	mc.mu.Unlock()

	return json.Unmarshal(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

// Len reports stored entries, expired ones included until swept.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.data)
}

func (i *memoryItem) expired(now time.Time) bool {
	return !i.expireAt.IsZero() && now.After(i.expireAt)
}

// evictLRU drops the least recently read entry. Caller holds mu.
func (mc *MemoryCache) evictLRU() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, item := range mc.data {
		if oldestKey == "" || item.access.Before(oldest) {
			oldestKey, oldest = key, item.access
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

func (mc *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			now := mc.now()
			mc.mu.Lock()
			for key, item := range mc.data {
				if item.expired(now) {
					delete(mc.data, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}

var _ Service = (*MemoryCache)(nil)
