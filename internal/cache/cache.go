package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Cache is the injected TTL cache capability shared across requests. Values
// are opaque bytes; callers serialize their own payloads. Concurrent
// identical-key writers may both repopulate; last write wins.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process TTL cache with a size cap.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	maxSize int
	now     func() time.Time
}

// NewMemory creates an in-memory cache holding at most maxSize entries.
func NewMemory(maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired()
	if len(m.entries) >= m.maxSize {
		m.evictOldest(max(1, m.maxSize/10))
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired()
	return len(m.entries)
}

func (m *Memory) evictExpired() {
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) evictOldest(count int) {
	type kv struct {
		key string
		exp time.Time
	}
	all := make([]kv, 0, len(m.entries))
	for k, e := range m.entries {
		all = append(all, kv{k, e.expiresAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].exp.Before(all[j].exp) })
	for i := 0; i < count && i < len(all); i++ {
		delete(m.entries, all[i].key)
	}
}
