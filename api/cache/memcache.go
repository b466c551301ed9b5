package cache

import (
	"context"
	"sync"
	"time"
)

// In-memory cache with small TTL to minimize Redis calls.
// Get returns the zero value of T on a miss.
type MemCache[T any] interface {
	Get(key string) T
	Set(key string, value T, ttl time.Duration)
	Close()
}

type memCache[T any] struct {
	memoryCache   sync.Map
	cleanupTicker *time.Ticker
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	now           func() time.Time
}

// Simple cache item.
type memCacheItem[T any] struct {
	value T
	ttl   time.Time
}

// NewMemCache creates a new memory cache.
func NewMemCache[T any]() MemCache[T] {
	return newMemCache[T](5*time.Minute, time.Now)
}

func newMemCache[T any](cleanupInterval time.Duration, now func() time.Time) *memCache[T] {
	ctx, cancel := context.WithCancel(context.Background())
	mc := &memCache[T]{
		cancel:        cancel,
		cleanupTicker: time.NewTicker(cleanupInterval),
		ctx:           ctx,
		now:           now,
	}
	mc.startCleanupWorker()

	return mc
}

// startCleanupWorker starts the background worker for memory cleaning.
func (mc *memCache[T]) startCleanupWorker() {
	mc.wg.Add(1)
	go func() {
		defer mc.wg.Done()
		for {
			select {
			case <-mc.cleanupTicker.C:
				mc.cleanup()
			case <-mc.ctx.Done():
				return
			}
		}
	}()
}

// cleanup go through each key and clean any expired key.
func (mc *memCache[T]) cleanup() {
	now := mc.now()
	mc.memoryCache.Range(func(key, value any) bool {
		item := value.(*memCacheItem[T])
		if now.After(item.ttl) {
			mc.memoryCache.Delete(key)
		}
		return true
	})
}

// Close shutdown the memory cache worker.
func (mc *memCache[T]) Close() {
	mc.cancel()
	mc.cleanupTicker.Stop()
	mc.wg.Wait()
}

// Get returns a key value of the cache.
func (mc *memCache[T]) Get(key string) T {
	var zero T
	value, exists := mc.memoryCache.Load(key)
	if !exists {
		return zero
	}

	item := value.(*memCacheItem[T])

	// If the reset time was reached, remove the cache.
	if mc.now().After(item.ttl) {
		mc.memoryCache.Delete(key)
		return zero
	}

	return item.value
}

// Set a given key on the cache.
func (mc *memCache[T]) Set(key string, value T, ttl time.Duration) {
	mc.memoryCache.Store(key, &memCacheItem[T]{
		value: value,
		ttl:   mc.now().Add(ttl),
	})
}
