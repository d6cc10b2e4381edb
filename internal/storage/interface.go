package storage

import (
	"context"
	"time"
)

// ObjectInfo describes a single object in the bucket.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore defines the read-only operations the runner needs from
// object storage.
type ObjectStore interface {
	// List returns all objects whose key starts with prefix.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - prefix: key prefix to filter by; empty lists the whole bucket.
	// Returns:
	//   - []ObjectInfo: matching objects in the order reported by the backend.
	//   - error: non-nil if the listing call fails.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// ObjectURI renders the URI for an object key as the destination
	// store's s3() table function expects it.
	ObjectURI(key string) string
}
