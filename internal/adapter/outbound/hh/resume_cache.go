package hh

import (
	"sync"
	"time"
)

// resumeCacheEntry represents a cached resume body with TTL.
type resumeCacheEntry struct {
	Text     string
	CachedAt time.Time
}

// IsExpired checks if the cache entry has expired based on TTL.
func (e *resumeCacheEntry) IsExpired(ttl time.Duration) bool {
	return time.Since(e.CachedAt) > ttl
}

// ResumeCache provides thread-safe LRU caching for fetched resume
// bodies with TTL support. The same resume is commonly analyzed
// against several vacancies within one session, so a short-lived
// bounded cache removes most repeat fetches.
type ResumeCache struct {
	mu      sync.RWMutex
	cache   map[string]*resumeCacheEntry
	maxSize int
	ttl     time.Duration
	lruList []string // newest at end
}

// ResumeCacheConfig holds configuration for the resume cache.
type ResumeCacheConfig struct {
	MaxSize int           // Maximum number of entries (0 = default)
	TTL     time.Duration // Time-to-live for cache entries (0 = default)
}

// NewResumeCache creates a new resume cache with the given configuration.
func NewResumeCache(config ResumeCacheConfig) *ResumeCache {
	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = 512
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &ResumeCache{
		cache:   make(map[string]*resumeCacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		lruList: make([]string, 0, maxSize),
	}
}

// Get retrieves a resume body from the cache if present and not expired.
func (rc *ResumeCache) Get(resumeRef string) (string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	entry, exists := rc.cache[resumeRef]
	if !exists {
		return "", false
	}

	if entry.IsExpired(rc.ttl) {
		return "", false
	}

	return entry.Text, true
}

// Set stores a resume body in the cache with LRU eviction if necessary.
func (rc *ResumeCache) Set(resumeRef, text string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if len(rc.cache) >= rc.maxSize {
		if _, exists := rc.cache[resumeRef]; !exists {
			rc.evictOldest()
		}
	}

	rc.cache[resumeRef] = &resumeCacheEntry{
		Text:     text,
		CachedAt: time.Now(),
	}
	rc.updateLRU(resumeRef)
}

// Clear removes all entries from the cache.
func (rc *ResumeCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.cache = make(map[string]*resumeCacheEntry)
	rc.lruList = make([]string, 0, rc.maxSize)
}

// Size returns the current number of entries in the cache.
func (rc *ResumeCache) Size() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return len(rc.cache)
}

// evictOldest removes the least recently used entry.
// Caller must hold the write lock.
func (rc *ResumeCache) evictOldest() {
	if len(rc.lruList) == 0 {
		return
	}

	oldest := rc.lruList[0]
	rc.lruList = rc.lruList[1:]
	delete(rc.cache, oldest)
}

// updateLRU moves the key to the end of the LRU list.
// Caller must hold the write lock.
func (rc *ResumeCache) updateLRU(key string) {
	for i, k := range rc.lruList {
		if k == key {
			rc.lruList = append(rc.lruList[:i], rc.lruList[i+1:]...)
			break
		}
	}
	rc.lruList = append(rc.lruList, key)
}
