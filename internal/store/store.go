package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key does not exist in a namespace.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps any read or write failure of the backing storage.
	ErrUnavailable = errors.New("storage unavailable")
)

// Namespaces used by the device. Each is an independent bucket.
const (
	NamespaceWiFi     = "wifi"
	NamespaceLED      = "led"
	NamespaceSchedule = "schedule"
)

// KV is a namespaced key-value store. Every write is a single transaction:
// readers observe either the previous or the new values, never a mix.
type KV interface {
	Get(namespace, key string) ([]byte, error)

	// GetAll reads keys of a namespace in one transaction. Missing keys
	// are absent from the result.
	GetAll(namespace string, keys ...string) (map[string][]byte, error)

	Put(namespace, key string, value []byte) error

	// PutAll writes all values of a namespace in one transaction.
	PutAll(namespace string, values map[string][]byte) error

	// Delete removes keys in one transaction. Missing keys are ignored.
	Delete(namespace string, keys ...string) error

	Close() error
}

// GetOr reads a key and falls back to def when the key is missing.
// Any other failure also yields def, together with an error wrapping
// ErrUnavailable so the caller can log it.
func GetOr(kv KV, namespace, key string, def []byte) ([]byte, error) {
	v, err := kv.Get(namespace, key)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, ErrNotFound):
		return def, nil
	case errors.Is(err, ErrUnavailable):
		return def, err
	default:
		return def, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
