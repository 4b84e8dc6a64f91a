// Package metastore maintains and persists the engine's durable catalog:
// the segment descriptors for each index type, the added-id set, and the
// tombstone set. Persistence format is spec.md §3's Index Metadata Blob
// (search_meta.json) plus two framed id-set blobs (added_ids.bin,
// deleted_ids.bin).
package metastore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/arjunvsood/ftindex/blobstore"
	"github.com/arjunvsood/ftindex/pkg/ftxerr"
)

const (
	metaBlobName    = "search_meta.json"
	addedIDsBlob    = "added_ids.bin"
	deletedIDsBlob  = "deleted_ids.bin"
	idSetSeparator  = 0x1E
)

// SegmentDescriptor is a catalog entry for one segment file. [Start, End)
// is the half-open byte range of the corresponding intake log that this
// segment's contents were built from.
type SegmentDescriptor struct {
	Filename   string `json:"filename"`
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
	TokenCount uint64 `json:"tokenCount"`
}

type indexMetaBlob struct {
	WordSegments []SegmentDescriptor `json:"wordSegments"`
	CharSegments []SegmentDescriptor `json:"charSegments"`
}

// Manager owns the catalog, the added-id set, and the tombstone set, and
// persists all three to a blobstore.Store.
type Manager struct {
	store blobstore.Store

	wordSegments []SegmentDescriptor
	charSegments []SegmentDescriptor

	addedIDs   map[uint32]struct{}
	deletedIDs map[uint32]struct{}
}

// New returns a Manager backed by store. Call Load before using it against
// an existing base directory.
func New(store blobstore.Store) *Manager {
	return &Manager{
		store:      store,
		addedIDs:   make(map[uint32]struct{}),
		deletedIDs: make(map[uint32]struct{}),
	}
}

// Load reads the metadata blob and both id-set blobs, replacing the
// Manager's in-memory state. Absent blobs simply leave their respective
// state empty.
func (m *Manager) Load(ctx context.Context) error {
	raw, ok, err := m.store.Read(ctx, metaBlobName)
	if err != nil {
		return ftxerr.Storage("metastore.Load", metaBlobName, err)
	}
	if ok {
		var blob indexMetaBlob
		if err := json.Unmarshal(raw, &blob); err != nil {
			return ftxerr.Wrap(ftxerr.ErrCorruptIndex, "metastore.Load", metaBlobName+": "+err.Error())
		}
		m.wordSegments = blob.WordSegments
		m.charSegments = blob.CharSegments
	} else {
		m.wordSegments = nil
		m.charSegments = nil
	}

	added, err := readIDSet(ctx, m.store, addedIDsBlob)
	if err != nil {
		return err
	}
	m.addedIDs = added

	deleted, err := readIDSet(ctx, m.store, deletedIDsBlob)
	if err != nil {
		return err
	}
	m.deletedIDs = deleted

	return nil
}

// Save rewrites the metadata blob and both id-set blobs wholesale. An empty
// id set removes its blob rather than writing an empty one.
func (m *Manager) Save(ctx context.Context) error {
	blob := indexMetaBlob{
		WordSegments: nonNil(m.wordSegments),
		CharSegments: nonNil(m.charSegments),
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("metastore.Save: marshaling metadata: %w", err)
	}
	if err := m.store.Write(ctx, metaBlobName, raw); err != nil {
		return ftxerr.Storage("metastore.Save", metaBlobName, err)
	}

	if err := writeIDSet(ctx, m.store, addedIDsBlob, m.addedIDs); err != nil {
		return err
	}
	if err := writeIDSet(ctx, m.store, deletedIDsBlob, m.deletedIDs); err != nil {
		return err
	}
	return nil
}

func nonNil(s []SegmentDescriptor) []SegmentDescriptor {
	if s == nil {
		return []SegmentDescriptor{}
	}
	return s
}

// GetSegments returns the catalog for indexType ("word" or "char"), in
// ascending order.
func (m *Manager) GetSegments(indexType string) []SegmentDescriptor {
	return m.segmentsFor(indexType)
}

// GetLastSegmentInfo returns the tail descriptor for indexType, or
// (SegmentDescriptor{}, false) if the type has no segments yet.
func (m *Manager) GetLastSegmentInfo(indexType string) (SegmentDescriptor, bool) {
	segs := m.segmentsFor(indexType)
	if len(segs) == 0 {
		return SegmentDescriptor{}, false
	}
	return segs[len(segs)-1], true
}

// UpdateSegment either appends a new tail descriptor (isNew) or mutates the
// existing tail descriptor's End and TokenCount in place. It must never be
// used to modify a non-tail descriptor.
func (m *Manager) UpdateSegment(indexType, filename string, start, end, tokenCount uint64, isNew bool) {
	desc := SegmentDescriptor{Filename: filename, Start: start, End: end, TokenCount: tokenCount}
	segs := m.segmentsFor(indexType)
	if isNew {
		segs = append(segs, desc)
	} else if len(segs) > 0 {
		segs[len(segs)-1].End = end
		segs[len(segs)-1].TokenCount = tokenCount
	} else {
		segs = append(segs, desc)
	}
	m.setSegmentsFor(indexType, segs)
}

func (m *Manager) segmentsFor(indexType string) []SegmentDescriptor {
	if indexType == "char" {
		return m.charSegments
	}
	return m.wordSegments
}

func (m *Manager) setSegmentsFor(indexType string, segs []SegmentDescriptor) {
	if indexType == "char" {
		m.charSegments = segs
	} else {
		m.wordSegments = segs
	}
}

// AddDeletedID tombstones id: it is added to deletedIDs and removed from
// addedIDs, upholding the invariant that the two sets stay disjoint.
func (m *Manager) AddDeletedID(id uint32) {
	m.deletedIDs[id] = struct{}{}
	delete(m.addedIDs, id)
}

// IsDeleted reports whether id has been tombstoned.
func (m *Manager) IsDeleted(id uint32) bool {
	_, ok := m.deletedIDs[id]
	return ok
}

// AddAddedID records id as added.
func (m *Manager) AddAddedID(id uint32) {
	m.addedIDs[id] = struct{}{}
}

// RemoveAddedID removes id from the added set without tombstoning it.
// AddDeletedID performs the same removal itself when tombstoning an id.
func (m *Manager) RemoveAddedID(id uint32) {
	delete(m.addedIDs, id)
}

// IsAdded reports whether id is currently in the added set.
func (m *Manager) IsAdded(id uint32) bool {
	_, ok := m.addedIDs[id]
	return ok
}

// HasDocument reports whether id has ever been seen by this engine: added
// or deleted.
func (m *Manager) HasDocument(id uint32) bool {
	return m.IsAdded(id) || m.IsDeleted(id)
}

// DeletedCount returns the number of tombstoned ids.
func (m *Manager) DeletedCount() int {
	return len(m.deletedIDs)
}

// Reset clears all in-memory state (segments, added ids, deleted ids)
// without touching storage; ClearAll at the engine layer wipes storage
// separately via store.ClearAll.
func (m *Manager) Reset() {
	m.wordSegments = nil
	m.charSegments = nil
	m.addedIDs = make(map[uint32]struct{})
	m.deletedIDs = make(map[uint32]struct{})
}

func readIDSet(ctx context.Context, store blobstore.Store, name string) (map[uint32]struct{}, error) {
	raw, ok, err := store.Read(ctx, name)
	if err != nil {
		return nil, ftxerr.Storage("metastore.Load", name, err)
	}
	set := make(map[uint32]struct{})
	if !ok {
		return set, nil
	}
	i := 0
	for i+5 <= len(raw) {
		if raw[i+4] != idSetSeparator {
			break
		}
		id := binary.LittleEndian.Uint32(raw[i : i+4])
		set[id] = struct{}{}
		i += 5
	}
	return set, nil
}

func writeIDSet(ctx context.Context, store blobstore.Store, name string, set map[uint32]struct{}) error {
	if len(set) == 0 {
		if err := store.Remove(ctx, name); err != nil {
			return ftxerr.Storage("metastore.Save", name, err)
		}
		return nil
	}
	buf := make([]byte, 0, len(set)*5)
	for id := range set {
		var idBuf [4]byte
		binary.LittleEndian.PutUint32(idBuf[:], id)
		buf = append(buf, idBuf[:]...)
		buf = append(buf, idSetSeparator)
	}
	if err := store.Write(ctx, name, buf); err != nil {
		return ftxerr.Storage("metastore.Save", name, err)
	}
	return nil
}
