package store

import "context"

// UpdateFunc receives the raw value currently stored under a key and returns
// the replacement. found is false when the key is absent.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Backend is the durable key-value medium behind a Store. Keys are scoped by
// namespace (one namespace per browser session).
type Backend interface {
	Load(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Save(ctx context.Context, namespace, key string, value []byte) error
	// Update runs fn as an atomic read-modify-write on one key.
	Update(ctx context.Context, namespace, key string, fn UpdateFunc) error
	Delete(ctx context.Context, namespace string, keys ...string) error
	DeleteAll(ctx context.Context, namespace string) error
}
