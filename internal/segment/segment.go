// Package segment implements a single on-disk inverted file: header, sorted
// dictionary, postings region, and token bytes, exactly as spec.md §3/§4.4
// describes it. A segment is immutable once sealed; "extending the tail"
// means rebuilding the whole file from a wider log range and overwriting it
// wholesale (blob stores only offer whole-file writes).
package segment

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/arjunvsood/ftindex/blobstore"
	"github.com/arjunvsood/ftindex/hash"
	"github.com/arjunvsood/ftindex/internal/cachelog"
	"github.com/arjunvsood/ftindex/pkg/ftxerr"
	"github.com/arjunvsood/ftindex/pkg/logging"
)

// MagicBytes identifies a valid index file ("INDX" read as a little-endian
// uint32).
const MagicBytes uint32 = 0x494E4458

const (
	header64Size = 16 // magic | entryCount | tokensOffset | hashWidthTag
	header32Size = 12 // magic | entryCount | tokensOffset

	// dictEntry64Size is 28 bytes, per spec.md's stated 64-bit dictionary
	// record size. Summing the record's named fields (hash u64,
	// tokenByteLen/tokenOffset/postingsOffset/postingsLen u32 each) only
	// accounts for 24 of those bytes; the remaining 4 are carried as a
	// reserved, always-zero field so the on-disk record size matches the
	// size the spec declares. See DESIGN.md.
	dictEntry64Size = 28
	dictEntry32Size = 20

	hashWidthTag64 = 64
)

var log = logging.WithComponent("segment")

type dictEntry struct {
	hash           uint64
	tokenByteLen   uint32
	tokenOffset    uint32
	postingsOffset uint32
	postingsLen    uint32
}

// Segment is a loaded (or built) index segment. It holds the full file
// bytes in memory, as spec.md's memory-footprint note expects.
type Segment struct {
	width        hash.Width
	raw          []byte
	dict         []dictEntry
	postingsBase uint32
	tokensBase   uint32
	loaded       bool
}

// New returns an unloaded segment for the given hash width. Search on an
// unloaded segment returns an empty result, per spec.
func New(width hash.Width) *Segment {
	return &Segment{width: width}
}

type bucket struct {
	token    string
	hashVal  uint64
	postings []uint32
}

// BuildAndSave builds a segment file from docs and writes it to path via
// store, replacing any previous contents. docs' tokens are assumed already
// deduplicated per document (doctok.Partition does this on intake); this
// function defensively drops any duplicate (token, doc-id) pair it still
// sees, to uphold the "no duplicate ids in a posting list" invariant
// regardless of caller behavior. Build is total: it reports only
// blob-store I/O errors, never a semantic failure of its own.
func BuildAndSave(ctx context.Context, store blobstore.Store, path string, hashFn hash.Func, docs []cachelog.TokenizedDoc) error {
	buckets := collectBuckets(hashFn, docs)
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].hashVal != buckets[j].hashVal {
			return buckets[i].hashVal < buckets[j].hashVal
		}
		return buckets[i].token < buckets[j].token
	})

	buf := encode(hashFn.Width(), buckets)
	if err := store.Write(ctx, path, buf); err != nil {
		return ftxerr.Storage("segment.BuildAndSave", path, err)
	}
	log.Info("segment built", "path", path, "terms", len(buckets))
	return nil
}

func collectBuckets(hashFn hash.Func, docs []cachelog.TokenizedDoc) []bucket {
	order := make([]string, 0)
	postings := make(map[string][]uint32)
	seenPerToken := make(map[string]map[uint32]struct{})
	for _, doc := range docs {
		for _, tok := range doc.Tokens {
			seen, ok := seenPerToken[tok]
			if !ok {
				seen = make(map[uint32]struct{})
				seenPerToken[tok] = seen
				order = append(order, tok)
			}
			if _, dup := seen[doc.ID]; dup {
				continue
			}
			seen[doc.ID] = struct{}{}
			postings[tok] = append(postings[tok], doc.ID)
		}
	}
	buckets := make([]bucket, 0, len(order))
	for _, tok := range order {
		buckets = append(buckets, bucket{token: tok, hashVal: hashFn.Sum(tok), postings: postings[tok]})
	}
	return buckets
}

func encode(width hash.Width, buckets []bucket) []byte {
	headerSize := header32Size
	entrySize := dictEntry32Size
	if width == hash.Width64 {
		headerSize = header64Size
		entrySize = dictEntry64Size
	}

	dictSize := len(buckets) * entrySize
	postingsRegionOffset := uint32(headerSize + dictSize)

	tokenOffsets := make([]uint32, len(buckets))
	postingsOffsets := make([]uint32, len(buckets))
	var postingsCursor, tokensCursor uint32
	for i, b := range buckets {
		postingsOffsets[i] = postingsCursor
		postingsCursor += uint32(len(b.postings)) * 4
		tokenOffsets[i] = tokensCursor
		tokensCursor += uint32(len(b.token)) + 1
	}
	tokensRegionOffset := postingsRegionOffset + postingsCursor

	buf := make([]byte, 0, int(tokensRegionOffset)+int(tokensCursor))

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(buckets)))
	binary.LittleEndian.PutUint32(header[8:12], tokensRegionOffset)
	if width == hash.Width64 {
		binary.LittleEndian.PutUint32(header[12:16], hashWidthTag64)
	}
	buf = append(buf, header...)

	for i, b := range buckets {
		entry := make([]byte, entrySize)
		if width == hash.Width64 {
			binary.LittleEndian.PutUint64(entry[0:8], b.hashVal)
			binary.LittleEndian.PutUint32(entry[8:12], uint32(len(b.token)))
			binary.LittleEndian.PutUint32(entry[12:16], tokenOffsets[i])
			binary.LittleEndian.PutUint32(entry[16:20], postingsOffsets[i])
			binary.LittleEndian.PutUint32(entry[20:24], uint32(len(b.postings))*4)
			// entry[24:28] reserved, left zero.
		} else {
			binary.LittleEndian.PutUint32(entry[0:4], uint32(b.hashVal))
			binary.LittleEndian.PutUint32(entry[4:8], uint32(len(b.token)))
			binary.LittleEndian.PutUint32(entry[8:12], tokenOffsets[i])
			binary.LittleEndian.PutUint32(entry[12:16], postingsOffsets[i])
			binary.LittleEndian.PutUint32(entry[16:20], uint32(len(b.postings))*4)
		}
		buf = append(buf, entry...)
	}

	for _, b := range buckets {
		idBuf := make([]byte, len(b.postings)*4)
		for i, id := range b.postings {
			binary.LittleEndian.PutUint32(idBuf[i*4:i*4+4], id)
		}
		buf = append(buf, idBuf...)
	}

	for _, b := range buckets {
		buf = append(buf, b.token...)
		buf = append(buf, 0x00)
	}

	return buf
}

// Load reads the full segment file into memory. It is idempotent: calling
// Load on an already-loaded segment is a no-op. A malformed header (bad
// magic or offsets past the end of the file) is reported as
// ftxerr.ErrCorruptIndex; the engine should treat such a segment as
// missing and carry on.
func (s *Segment) Load(ctx context.Context, store blobstore.Store, path string) error {
	if s.loaded {
		return nil
	}
	raw, ok, err := store.Read(ctx, path)
	if err != nil {
		return ftxerr.Storage("segment.Load", path, err)
	}
	if !ok {
		return ftxerr.Wrap(ftxerr.ErrCorruptIndex, "segment.Load", path+": missing")
	}
	return s.decode(raw, path)
}

func (s *Segment) decode(raw []byte, path string) error {
	headerSize := header32Size
	entrySize := dictEntry32Size
	if s.width == hash.Width64 {
		headerSize = header64Size
		entrySize = dictEntry64Size
	}
	if len(raw) < headerSize {
		return ftxerr.Wrap(ftxerr.ErrCorruptIndex, "segment.Load", path+": truncated header")
	}
	magic := binary.LittleEndian.Uint32(raw[0:4])
	if magic != MagicBytes {
		return ftxerr.Wrap(ftxerr.ErrCorruptIndex, "segment.Load", path+": bad magic")
	}
	entryCount := binary.LittleEndian.Uint32(raw[4:8])
	tokensOffset := binary.LittleEndian.Uint32(raw[8:12])

	dictOffset := uint32(headerSize)
	dictEnd := dictOffset + entryCount*uint32(entrySize)
	if int(dictEnd) > len(raw) || tokensOffset > uint32(len(raw)) || dictEnd > tokensOffset {
		return ftxerr.Wrap(ftxerr.ErrCorruptIndex, "segment.Load", path+": impossible offsets")
	}

	dict := make([]dictEntry, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		rec := raw[dictOffset+i*uint32(entrySize) : dictOffset+(i+1)*uint32(entrySize)]
		var e dictEntry
		if s.width == hash.Width64 {
			e.hash = binary.LittleEndian.Uint64(rec[0:8])
			e.tokenByteLen = binary.LittleEndian.Uint32(rec[8:12])
			e.tokenOffset = binary.LittleEndian.Uint32(rec[12:16])
			e.postingsOffset = binary.LittleEndian.Uint32(rec[16:20])
			e.postingsLen = binary.LittleEndian.Uint32(rec[20:24])
		} else {
			e.hash = uint64(binary.LittleEndian.Uint32(rec[0:4]))
			e.tokenByteLen = binary.LittleEndian.Uint32(rec[4:8])
			e.tokenOffset = binary.LittleEndian.Uint32(rec[8:12])
			e.postingsOffset = binary.LittleEndian.Uint32(rec[12:16])
			e.postingsLen = binary.LittleEndian.Uint32(rec[16:20])
		}
		dict[i] = e
	}

	s.raw = raw
	s.dict = dict
	s.postingsBase = dictEnd
	s.tokensBase = tokensOffset
	s.loaded = true
	return nil
}

// Search looks up term using hashFn (which must match the hash algorithm
// used when this segment was built, and the segment's own Width) and
// returns the ids in its posting list, or nil if term is absent or the
// segment hasn't been loaded.
func (s *Segment) Search(term string, hashFn hash.Func) []uint32 {
	if !s.loaded || len(s.dict) == 0 {
		return nil
	}
	h := hashFn.Sum(term)
	n := len(s.dict)
	idx := sort.Search(n, func(i int) bool { return s.dict[i].hash >= h })
	if idx >= n || s.dict[idx].hash != h {
		return nil
	}

	beforeCollides := idx > 0 && s.dict[idx-1].hash == h
	afterCollides := idx+1 < n && s.dict[idx+1].hash == h
	if !beforeCollides && !afterCollides {
		return s.postingsAt(s.dict[idx])
	}

	start := idx
	for start > 0 && s.dict[start-1].hash == h {
		start--
	}
	for i := start; i < n && s.dict[i].hash == h; i++ {
		if s.tokenBytesEqual(s.dict[i], term) {
			return s.postingsAt(s.dict[i])
		}
	}
	return nil
}

func (s *Segment) tokenBytesEqual(e dictEntry, term string) bool {
	start := s.tokensBase + e.tokenOffset
	end := start + e.tokenByteLen
	if int(end) > len(s.raw) {
		return false
	}
	return string(s.raw[start:end]) == term
}

func (s *Segment) postingsAt(e dictEntry) []uint32 {
	start := s.postingsBase + e.postingsOffset
	end := start + e.postingsLen
	if int(end) > len(s.raw) {
		return nil
	}
	n := int(e.postingsLen / 4)
	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		ids[i] = binary.LittleEndian.Uint32(s.raw[int(start)+i*4 : int(start)+i*4+4])
	}
	return ids
}

// TermCount returns the number of dictionary entries, 0 if unloaded.
func (s *Segment) TermCount() int {
	return len(s.dict)
}

// Width reports which hash width this segment was built for.
func (s *Segment) Width() hash.Width {
	return s.width
}
