package port

import (
	"context"
	"iter"
	"time"
)

// Entry is a single key/value pair yielded by a template scan.
type Entry struct {
	Key   string
	Value string
}

// KeyValueStore is an expiring key-value store. Keys passed in and yielded out are relative
// to the keyspace the store was constructed for.
type KeyValueStore interface {
	// Get returns the value and true when the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// GetByTemplate lazily yields entries whose key matches a glob pattern. The sequence is finite
	// for a given snapshot and cannot be restarted; iteration stops at the first yielded error.
	GetByTemplate(ctx context.Context, pattern string) iter.Seq2[Entry, error]
	// Put overwrites the value. A non-positive expire stores the key without expiry.
	Put(ctx context.Context, key, value string, expire time.Duration) error
	// Delete removes the key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
