package storage

import (
	"errors"

	"github.com/nats-io/nats.go/jetstream"
)

// Common storage errors.
var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidKey is returned for IDs that cannot serve as KV keys.
	ErrInvalidKey = errors.New("invalid storage key")
)

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound)
}

// isNoKeys checks if an error indicates an empty bucket.
func isNoKeys(err error) bool {
	return errors.Is(err, jetstream.ErrNoKeysFound)
}
