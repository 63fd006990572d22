package storage

import (
	"context"
	"fmt"
	"time"

	"memoryland-backend/internal/config"
)

// ObjectStore is a container-per-owner blob space. Containers are key
// prefixes inside one bucket; a container exists once EnsureContainer has
// written its marker object.
type ObjectStore interface {
	EnsureContainer(ctx context.Context, container string) error
	ContainerExists(ctx context.Context, container string) (bool, error)
	Exists(ctx context.Context, container, key string) (bool, error)
	Put(ctx context.Context, container, key string, data []byte, contentType string) error
	// Delete removes an object; a missing object is not an error.
	Delete(ctx context.Context, container, key string) error
	// PresignGet returns a read-only URL for exactly one object.
	PresignGet(ctx context.Context, container, key string, expiry time.Duration) (string, error)
}

const (
	markerKey          = ".container"
	contentDisposition = "inline"
)

// PadID renders an id as a fixed-width, lexically sortable path segment
func PadID(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func objectPath(container, key string) string {
	return container + "/" + key
}

// New creates the object store selected by cfg. Missing or malformed
// credentials yield a *config.ConfigurationError.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case config.StorageDriverMemory:
		return NewMemoryStore(), nil
	case config.StorageDriverMinio:
		return NewMinioStore(ctx, cfg)
	default:
		return NewS3Store(ctx, cfg)
	}
}
