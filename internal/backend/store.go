// Package backend defines the object-storage contract the proxy consumes
// and the closed error classification shared by every layer above it.
package backend

import (
	"context"
)

// PutResult reports a completed upload.
type PutResult struct {
	ETag string
	Size int64
}

// Object is a downloaded blob.
type Object struct {
	Payload     []byte
	ContentType string
}

// Store is the interface to one backend endpoint. Implementations are
// bound to a single resolved address; replacing the endpoint means
// replacing the Store.
type Store interface {
	// Put stores a payload and returns its etag.
	Put(ctx context.Context, key string, payload []byte) (PutResult, error)

	// Get retrieves a blob. The error classifies as ClassNotFound when the
	// key does not exist.
	Get(ctx context.Context, key string) (Object, error)

	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}
