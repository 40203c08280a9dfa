package kvstore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if got := s.GetData(ctx, "missing"); got != nil {
		t.Errorf("expected nil for missing key, got %v", got)
	}

	data := map[string]interface{}{"current_flow": "support", "count": float64(3)}
	if !s.SetData(ctx, "k", data, 60) {
		t.Fatal("SetData failed")
	}

	got := s.GetData(ctx, "k")
	if got == nil {
		t.Fatal("GetData returned nil for live key")
	}
	if got["current_flow"] != "support" {
		t.Errorf("expected current_flow=support, got %v", got["current_flow"])
	}

	// Stored value must be a copy, not a live reference.
	data["current_flow"] = "mutated"
	if again := s.GetData(ctx, "k"); again["current_flow"] != "support" {
		t.Errorf("stored document was mutated through the caller's map")
	}

	if !s.DeleteData(ctx, "k") {
		t.Error("DeleteData returned false for live key")
	}
	if s.DeleteData(ctx, "k") {
		t.Error("DeleteData returned true for already-deleted key")
	}
	if got := s.GetData(ctx, "k"); got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if ttl := s.GetTTL(ctx, "missing"); ttl != TTLMissing {
		t.Errorf("expected TTLMissing for absent key, got %d", ttl)
	}

	s.SetData(ctx, "forever", map[string]interface{}{"a": "b"}, 0)
	if ttl := s.GetTTL(ctx, "forever"); ttl != TTLNoExpiry {
		t.Errorf("expected TTLNoExpiry for non-expiring key, got %d", ttl)
	}

	s.SetData(ctx, "k", map[string]interface{}{"a": "b"}, 120)
	ttl := s.GetTTL(ctx, "k")
	if ttl <= 0 || ttl > 120 {
		t.Errorf("expected TTL in (0, 120], got %d", ttl)
	}

	// Re-setting resets the TTL.
	s.SetData(ctx, "k", map[string]interface{}{"a": "b"}, 300)
	ttl = s.GetTTL(ctx, "k")
	if ttl <= 120 || ttl > 300 {
		t.Errorf("expected TTL reset into (120, 300], got %d", ttl)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.SetData(ctx, "k", map[string]interface{}{"a": "b"}, 60)
	s.mu.Lock()
	entry := s.entries["k"]
	entry.expiresAt = time.Now().Add(-time.Second)
	s.entries["k"] = entry
	s.mu.Unlock()

	if got := s.GetData(ctx, "k"); got != nil {
		t.Errorf("expected nil for expired key, got %v", got)
	}
	if ttl := s.GetTTL(ctx, "k"); ttl != TTLMissing {
		t.Errorf("expected TTLMissing for expired key, got %d", ttl)
	}
}
