package storage

import (
	"context"
	"io"
)

// ObjectStore uploads public objects such as avatars.
type ObjectStore interface {
	// Upload writes r under key and returns the public URL of the object.
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
}
