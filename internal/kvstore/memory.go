package kvstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-process KeyValue implementation with real TTL
// semantics. It backs tests and the explicit no-Redis development mode;
// state does not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// SetData stores a JSON copy of data under key with the given TTL.
// A non-positive TTL stores the key without expiry.
func (s *MemoryStore) SetData(ctx context.Context, key string, data map[string]interface{}, ttlSeconds int) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		return false
	}
	var expiresAt time.Time
	if ttlSeconds > 0 {
		expiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{payload: payload, expiresAt: expiresAt}
	s.mu.Unlock()
	return true
}

// GetData returns the document stored under key, or nil if absent or expired.
func (s *MemoryStore) GetData(ctx context.Context, key string) map[string]interface{} {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if entry.expired(time.Now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(entry.payload, &data); err != nil {
		return nil
	}
	return data
}

// DeleteData removes key, reporting whether a live entry was removed.
func (s *MemoryStore) DeleteData(ctx context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	return !entry.expired(time.Now())
}

// GetTTL returns remaining whole seconds for key, rounded up so a freshly
// set key never reports zero.
func (s *MemoryStore) GetTTL(ctx context.Context, key string) int {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || entry.expired(time.Now()) {
		return TTLMissing
	}
	if entry.expiresAt.IsZero() {
		return TTLNoExpiry
	}
	remaining := time.Until(entry.expiresAt)
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
