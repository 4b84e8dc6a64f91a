// Package blobstore defines the narrow storage contract the indexing core
// depends on. Every file the core touches — the metadata blob, the id-set
// blobs, the intake logs, the segment files — is opaque bytes to the store;
// the core owns all framing and interpretation.
//
// No concrete backend lives in this package. A sandboxed filesystem, a
// native filesystem, or an in-memory mock are all valid implementations and
// are the caller's concern to provide.
package blobstore

import "context"

// Store is the storage abstraction the indexing core depends on. All
// methods are namespaced under whatever root the implementation chooses;
// names passed in are flat, relative identifiers ("search_meta.json",
// "word_seg_3.bin", ...) with no path semantics implied.
type Store interface {
	// Write replaces the named blob wholesale. It either fully succeeds or
	// leaves the previous contents untouched from the caller's standpoint.
	Write(ctx context.Context, name string, data []byte) error

	// Append creates the named blob if absent and appends data to its end.
	// The blob's length grows by exactly len(data).
	Append(ctx context.Context, name string, data []byte) error

	// Read returns the full contents of the named blob, or (nil, false) if
	// it does not exist. A missing blob is not an error.
	Read(ctx context.Context, name string) ([]byte, bool, error)

	// ReadRange returns the half-open byte range [start, end) of the named
	// blob, or (nil, false) if it does not exist. A range that extends past
	// the blob's end returns whatever prefix of the requested range exists.
	ReadRange(ctx context.Context, name string, start, end uint64) ([]byte, bool, error)

	// Size returns the length of the named blob in bytes, or 0 if absent.
	Size(ctx context.Context, name string) (uint64, error)

	// Remove deletes the named blob. Removing an absent blob is a no-op.
	Remove(ctx context.Context, name string) error

	// List returns the names of every blob currently stored.
	List(ctx context.Context) ([]string, error)

	// ClearAll removes every blob under this store's namespace.
	ClearAll(ctx context.Context) error
}
