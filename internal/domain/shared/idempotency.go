package shared

import (
	"context"
	"time"
)

// IdempotencyStore tracks processed request/event identifiers so that
// duplicate submissions are detected and skipped.
type IdempotencyStore interface {
	// MarkProcessed marks an identifier as processed with a TTL.
	// Returns true if it was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether an identifier has already been processed.
	IsProcessed(ctx context.Context, id string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
