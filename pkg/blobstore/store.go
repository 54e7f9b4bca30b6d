// Package blobstore is a minimal object-storage abstraction: a container of
// named byte blobs with create/read/list/delete/exists. Receipts and voice
// tokens each live in their own container (a key prefix on the backend).
package blobstore

import (
	"context"
	"errors"
	"iter"
)

var ErrNotFound = errors.New("blob not found")

// Store is a single container of blobs. Keys are relative to the container.
type Store interface {
	// CreateContainerIfNotExists makes the container usable. It is idempotent.
	CreateContainerIfNotExists(ctx context.Context) error

	Put(ctx context.Context, key string, data []byte) error

	// Get returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ListKeys enumerates the container. The sequence is finite, unordered and
	// not snapshot-consistent; every call starts a fresh enumeration. An error
	// is yielded at most once and ends the sequence.
	ListKeys(ctx context.Context) iter.Seq2[string, error]
}

// ConditionalWriter is implemented by backends with a create-if-absent primitive.
type ConditionalWriter interface {
	// PutIfAbsent writes data only when key does not exist yet. It reports
	// false, with a nil error, when another writer got there first.
	PutIfAbsent(ctx context.Context, key string, data []byte) (bool, error)
}
