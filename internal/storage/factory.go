package storage

import "strings"

// NewStore creates an ObjectStore based on the configuration.
// Parameters:
//   - cfg: storage configuration including endpoint, credentials, and bucket.
// Returns:
//   - ObjectStore: initialized storage client implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStore(cfg *S3Config) (ObjectStore, error) {
	// Auto-detect the backend if not specified
	if cfg.Backend == "" {
		cfg.Backend = detectBackend(cfg.Endpoint)
	}

	if cfg.Backend == BackendMinIO {
		return NewMinIOStore(cfg)
	}
	return NewS3Store(cfg)
}

// detectBackend attempts to detect the storage backend from the endpoint
func detectBackend(endpoint string) Backend {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "" || strings.Contains(endpoint, "amazonaws.com"):
		return BackendS3
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return BackendR2
	case strings.Contains(endpoint, "minio"):
		return BackendMinIO
	default:
		return BackendS3
	}
}
