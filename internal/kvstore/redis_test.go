package kvstore

import (
	"context"
	"os"
	"testing"
)

func TestRedisStore(t *testing.T) {
	// This test requires a running Redis instance.
	// Set the REDIS_ADDR environment variable for the address.
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}

	s, err := NewRedisStore(WithAddr(addr))
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	key := "conversation:test_redis_store"
	s.DeleteData(ctx, key)

	if !s.SetData(ctx, key, map[string]interface{}{"current_flow": "support"}, 60) {
		t.Fatal("SetData failed")
	}
	got := s.GetData(ctx, key)
	if got == nil || got["current_flow"] != "support" {
		t.Errorf("expected stored document back, got %v", got)
	}
	ttl := s.GetTTL(ctx, key)
	if ttl <= 0 || ttl > 60 {
		t.Errorf("expected TTL in (0, 60], got %d", ttl)
	}
	if !s.DeleteData(ctx, key) {
		t.Error("DeleteData returned false for live key")
	}
	if ttl := s.GetTTL(ctx, key); ttl != TTLMissing {
		t.Errorf("expected TTLMissing after delete, got %d", ttl)
	}
}
