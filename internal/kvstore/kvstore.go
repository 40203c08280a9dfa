// Package kvstore provides the TTL-capable key-value backends that hold
// serialized conversation session documents.
//
// Values are opaque structured documents (maps of maps); this package owns
// their JSON serialization. All operations degrade to safe defaults (false,
// nil, or the TTL sentinels) when the backend is unreachable, so callers can
// treat unavailability as "no session".
package kvstore

import "context"

// TTL sentinels returned by GetTTL, matching Redis TTL semantics.
const (
	// TTLNoExpiry means the key exists but has no expiry set.
	TTLNoExpiry = -1
	// TTLMissing means the key does not exist (or the store errored).
	TTLMissing = -2
)

// KeyValue is the contract the conversation state machine consumes.
type KeyValue interface {
	// SetData stores a document under key with the given TTL in seconds.
	// Returns false when the store is unavailable or serialization fails.
	SetData(ctx context.Context, key string, data map[string]interface{}, ttlSeconds int) bool

	// GetData retrieves the document stored under key. Returns nil when the
	// key is missing, expired, or the store is unavailable.
	GetData(ctx context.Context, key string) map[string]interface{}

	// DeleteData removes key outright. Returns true only when a key was
	// actually deleted.
	DeleteData(ctx context.Context, key string) bool

	// GetTTL returns the remaining seconds before key expires, TTLNoExpiry
	// for a persistent key, or TTLMissing for an absent key.
	GetTTL(ctx context.Context, key string) int

	// Ping reports backend reachability.
	Ping(ctx context.Context) error
}
