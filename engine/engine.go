// Package engine is the indexing core's sole public surface: it
// orchestrates tokenization, the word/char intake pipeline, intermediate-log
// appends, segment rollover and build, batch mode, and ranked query
// evaluation with tombstone filtering. All public methods must be called
// serially by the caller — the Engine holds an internal mutex only as the
// belt-and-suspenders guard the concurrency model recommends, not as a
// substitute for that discipline, since two Engine instances sharing a base
// directory are never safe regardless of in-process locking.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arjunvsood/ftindex/blobstore"
	"github.com/arjunvsood/ftindex/hash"
	"github.com/arjunvsood/ftindex/internal/cachelog"
	"github.com/arjunvsood/ftindex/internal/doctok"
	"github.com/arjunvsood/ftindex/internal/metastore"
	"github.com/arjunvsood/ftindex/internal/segment"
	"github.com/arjunvsood/ftindex/pkg/ftxerr"
	"github.com/arjunvsood/ftindex/pkg/logging"
	"github.com/arjunvsood/ftindex/pkg/metrics"
)

var log = logging.WithComponent("engine")

const (
	typeWord = "word"
	typeChar = "char"
)

// Document is the unit of intake. Extra carries any caller-defined fields
// beyond ID and Text; a custom IndexingTokenizer may read them.
type Document struct {
	ID    uint32
	Text  string
	Extra map[string]any
}

// Query is the unit of search. A bare string query is wrapped as
// Query{Text: s}.
type Query struct {
	Text  string
	Extra map[string]any
}

// NewQuery wraps a plain string as a Query with no extra fields.
func NewQuery(text string) Query {
	return Query{Text: text}
}

// IndexingTokenizer produces the tokens indexed for a document.
type IndexingTokenizer func(Document) []string

// SearchTokenizer produces the tokens looked up for a query.
type SearchTokenizer func(Query) []string

// Hit is one search result: a matching document id, its accumulated score,
// and the set of query tokens that matched it.
type Hit struct {
	ID     uint32
	Score  float64
	Tokens []string
}

// Status is the snapshot returned by GetStatus.
type Status struct {
	WordSegments  int
	CharSegments  int
	Deleted       int
	WordCacheSize uint64
	CharCacheSize uint64
	InBatch       bool
}

// Options configures an Engine. See spec.md §4.6's configuration table;
// zero-valued fields take the defaults documented on each field below.
type Options struct {
	// Store is the blob-storage backend this engine reads and writes.
	// Required: the core ships no default backend (see blobstore package
	// doc), so unlike the reference design's "baseDir or store", only an
	// injected Store is accepted here.
	Store blobstore.Store

	// IndexingTokenizer produces tokens for AddDocument(s). Defaults to
	// Unicode word segmentation with lower-casing (doctok.Default).
	IndexingTokenizer IndexingTokenizer
	// SearchTokenizer produces tokens for Search. Defaults to
	// IndexingTokenizer's behavior applied to the query text.
	SearchTokenizer SearchTokenizer

	// WordSegmentTokenThreshold caps the tail word segment's token count
	// before rollover opens a new one. Default 100000.
	WordSegmentTokenThreshold uint64
	// CharSegmentTokenThreshold is the same for char segments. Default
	// 500000.
	CharSegmentTokenThreshold uint64
	// MinWordTokenSave is the minimum tokenCount before a word segment is
	// materialized to disk. Default 0.
	MinWordTokenSave uint64
	// MinCharTokenSave is the same for char segments. Default 0.
	MinCharTokenSave uint64

	// HashAlgorithm selects the dictionary hash width. Default
	// hash.Width64.
	HashAlgorithm hash.Width

	// Metrics is optional; a nil value makes every metrics call a no-op.
	Metrics *metrics.Collectors
}

func (o *Options) applyDefaults() {
	if o.IndexingTokenizer == nil {
		o.IndexingTokenizer = func(doc Document) []string { return doctok.Default(doc.Text) }
	}
	if o.SearchTokenizer == nil {
		indexing := o.IndexingTokenizer
		o.SearchTokenizer = func(q Query) []string { return indexing(Document{Text: q.Text, Extra: q.Extra}) }
	}
	if o.WordSegmentTokenThreshold == 0 {
		o.WordSegmentTokenThreshold = 100000
	}
	if o.CharSegmentTokenThreshold == 0 {
		o.CharSegmentTokenThreshold = 500000
	}
	if o.HashAlgorithm == 0 {
		o.HashAlgorithm = hash.Width64
	}
}

func (o *Options) validate() error {
	if o.Store == nil {
		return ftxerr.Wrap(ftxerr.ErrConfigInvalid, "engine.New", "Store is required")
	}
	if o.MinWordTokenSave >= o.WordSegmentTokenThreshold {
		return ftxerr.Wrap(ftxerr.ErrConfigInvalid, "engine.New", "MinWordTokenSave must be < WordSegmentTokenThreshold")
	}
	if o.MinCharTokenSave >= o.CharSegmentTokenThreshold {
		return ftxerr.Wrap(ftxerr.ErrConfigInvalid, "engine.New", "MinCharTokenSave must be < CharSegmentTokenThreshold")
	}
	return nil
}

// Engine is the indexing core. Zero value is not usable; construct with
// New.
type Engine struct {
	mu sync.Mutex

	opts   Options
	store  blobstore.Store
	hashFn hash.Func
	meta   *metastore.Manager

	wordSegments map[string]*segment.Segment
	charSegments map[string]*segment.Segment

	initialized bool
	inBatch     bool
	pendingWord uint64
	pendingChar uint64
}

// New validates opts and returns an unopened Engine. Call Init before use;
// public methods also call it lazily on first use.
func New(opts Options) (*Engine, error) {
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Engine{
		opts:         opts,
		store:        opts.Store,
		hashFn:       hash.New(opts.HashAlgorithm),
		meta:         metastore.New(opts.Store),
		wordSegments: make(map[string]*segment.Segment),
		charSegments: make(map[string]*segment.Segment),
	}, nil
}

// Init loads the catalog and eagerly loads every catalogued segment in
// parallel (bounded by errgroup's shared context, not a worker cap: segment
// counts are expected to stay small enough that this is never the
// bottleneck). Idempotent.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initLocked(ctx)
}

func (e *Engine) initLocked(ctx context.Context) error {
	if e.initialized {
		return nil
	}
	if err := e.meta.Load(ctx); err != nil {
		return err
	}

	type job struct {
		typ      string
		filename string
	}
	var jobs []job
	for _, d := range e.meta.GetSegments(typeWord) {
		jobs = append(jobs, job{typeWord, d.Filename})
	}
	for _, d := range e.meta.GetSegments(typeChar) {
		jobs = append(jobs, job{typeChar, d.Filename})
	}

	results := make([]*segment.Segment, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			seg := segment.New(e.hashFn.Width())
			if err := seg.Load(gctx, e.store, j.filename); err != nil {
				log.Warn("segment unloadable at init, treating as missing", "file", j.filename, "err", err)
				return nil
			}
			results[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, j := range jobs {
		if results[i] != nil {
			e.segmentsFor(j.typ)[j.filename] = results[i]
		}
	}

	e.initialized = true
	return nil
}

func (e *Engine) segmentsFor(indexType string) map[string]*segment.Segment {
	if indexType == typeChar {
		return e.charSegments
	}
	return e.wordSegments
}

func (e *Engine) thresholdFor(indexType string) uint64 {
	if indexType == typeChar {
		return e.opts.CharSegmentTokenThreshold
	}
	return e.opts.WordSegmentTokenThreshold
}

func (e *Engine) minSaveFor(indexType string) uint64 {
	if indexType == typeChar {
		return e.opts.MinCharTokenSave
	}
	return e.opts.MinWordTokenSave
}

// StartBatch enters batch mode, deferring segment rollover until EndBatch.
// Re-entering batch mode is a no-op beyond resetting the pending counters.
func (e *Engine) StartBatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inBatch = true
	e.pendingWord = 0
	e.pendingChar = 0
}

// EndBatch leaves batch mode, processes any accumulated token deltas once
// per non-zero type, and saves the catalog. Safe to call again if a prior
// call failed partway: it re-reads current log sizes rather than trusting
// stale state.
func (e *Engine) EndBatch(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(ctx); err != nil {
		return err
	}
	e.inBatch = false
	if e.pendingWord > 0 {
		if err := e.processSegment(ctx, typeWord, e.pendingWord); err != nil {
			return err
		}
		e.pendingWord = 0
	}
	if e.pendingChar > 0 {
		if err := e.processSegment(ctx, typeChar, e.pendingChar); err != nil {
			return err
		}
		e.pendingChar = 0
	}
	return e.meta.Save(ctx)
}

// AddDocument is the strict single-document form of AddDocuments.
func (e *Engine) AddDocument(ctx context.Context, doc Document) error {
	return e.AddDocuments(ctx, []Document{doc})
}

// AddDocuments adds docs, failing the whole call if any id is already
// added or has been tombstoned.
func (e *Engine) AddDocuments(ctx context.Context, docs []Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addDocuments(ctx, docs, false)
}

// AddDocumentIfMissing is the lenient single-document form of
// AddDocumentsIfMissing.
func (e *Engine) AddDocumentIfMissing(ctx context.Context, doc Document) error {
	return e.AddDocumentsIfMissing(ctx, []Document{doc})
}

// AddDocumentsIfMissing adds docs, silently skipping any id that is
// already added or has been tombstoned.
func (e *Engine) AddDocumentsIfMissing(ctx context.Context, docs []Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addDocuments(ctx, docs, true)
}

func (e *Engine) addDocuments(ctx context.Context, docs []Document, lenient bool) error {
	if err := e.initLocked(ctx); err != nil {
		return err
	}

	var wordDocs, charDocs []cachelog.TokenizedDoc
	var acceptedIDs []uint32
	seenThisCall := make(map[uint32]struct{}, len(docs))

	for _, doc := range docs {
		if e.meta.IsDeleted(doc.ID) {
			if lenient {
				continue
			}
			return ftxerr.Wrap(ftxerr.ErrIDTombstoned, "engine.AddDocument", fmt.Sprintf("id=%d", doc.ID))
		}
		if e.meta.IsAdded(doc.ID) {
			if lenient {
				continue
			}
			return ftxerr.Wrap(ftxerr.ErrIDConflict, "engine.AddDocument", fmt.Sprintf("id=%d", doc.ID))
		}
		if _, dup := seenThisCall[doc.ID]; dup {
			if lenient {
				continue
			}
			return ftxerr.Wrap(ftxerr.ErrIDConflict, "engine.AddDocument", fmt.Sprintf("id=%d (duplicate within call)", doc.ID))
		}
		seenThisCall[doc.ID] = struct{}{}

		tokens := e.opts.IndexingTokenizer(doc)
		words, chars := doctok.Partition(tokens)
		if len(words) > 0 {
			wordDocs = append(wordDocs, cachelog.TokenizedDoc{ID: doc.ID, Tokens: words})
		}
		if len(chars) > 0 {
			charDocs = append(charDocs, cachelog.TokenizedDoc{ID: doc.ID, Tokens: chars})
		}
		acceptedIDs = append(acceptedIDs, doc.ID)
	}

	if len(acceptedIDs) == 0 {
		return nil
	}

	if _, err := cachelog.AppendBatch(ctx, e.store, cachelog.Name(typeWord), wordDocs); err != nil {
		return err
	}
	if _, err := cachelog.AppendBatch(ctx, e.store, cachelog.Name(typeChar), charDocs); err != nil {
		return err
	}

	for _, id := range acceptedIDs {
		e.meta.AddAddedID(id)
	}
	e.opts.Metrics.DocsAddedInc(len(acceptedIDs))

	wordDelta := tokenTotal(wordDocs)
	charDelta := tokenTotal(charDocs)

	if e.inBatch {
		e.pendingWord += wordDelta
		e.pendingChar += charDelta
		return nil
	}

	if wordDelta > 0 {
		if err := e.processSegment(ctx, typeWord, wordDelta); err != nil {
			return err
		}
	}
	if charDelta > 0 {
		if err := e.processSegment(ctx, typeChar, charDelta); err != nil {
			return err
		}
	}
	return e.meta.Save(ctx)
}

func tokenTotal(docs []cachelog.TokenizedDoc) uint64 {
	var n uint64
	for _, d := range docs {
		n += uint64(len(d.Tokens))
	}
	return n
}

// processSegment implements spec.md §4.6's "don't spill" rollover decision
// for one index type, given the token count just added to its log.
func (e *Engine) processSegment(ctx context.Context, indexType string, addedTokenCount uint64) error {
	cacheSize, err := cachelog.Size(ctx, e.store, cachelog.Name(indexType))
	if err != nil {
		return err
	}
	threshold := e.thresholdFor(indexType)
	minSave := e.minSaveFor(indexType)
	last, hasLast := e.meta.GetLastSegmentInfo(indexType)

	var (
		isNew       bool
		startOffset uint64
		newTotal    uint64
		filename    string
	)
	switch {
	case !hasLast:
		isNew = true
		startOffset = 0
		newTotal = addedTokenCount
		filename = segmentFilename(indexType, 1)
	case last.TokenCount >= threshold || last.TokenCount+addedTokenCount >= threshold:
		isNew = true
		startOffset = last.End
		newTotal = addedTokenCount
		filename = segmentFilename(indexType, len(e.meta.GetSegments(indexType))+1)
	default:
		isNew = false
		startOffset = last.Start
		newTotal = last.TokenCount + addedTokenCount
		filename = last.Filename
	}

	if newTotal < minSave {
		e.meta.UpdateSegment(indexType, filename, startOffset, cacheSize, newTotal, isNew)
		return nil
	}

	docs, err := cachelog.ReadRange(ctx, e.store, cachelog.Name(indexType), startOffset, cacheSize)
	if err != nil {
		return err
	}
	if err := segment.BuildAndSave(ctx, e.store, filename, e.hashFn, docs); err != nil {
		return err
	}
	e.meta.UpdateSegment(indexType, filename, startOffset, cacheSize, newTotal, isNew)

	seg := segment.New(e.hashFn.Width())
	if err := seg.Load(ctx, e.store, filename); err != nil {
		return err
	}
	e.segmentsFor(indexType)[filename] = seg
	e.opts.Metrics.SegmentFlushedInc(indexType)
	return nil
}

func segmentFilename(indexType string, n int) string {
	return fmt.Sprintf("%s_seg_%d.bin", indexType, n)
}

// RemoveDocument tombstones id. Postings are never rewritten; search-time
// filtering hides id from every future query.
func (e *Engine) RemoveDocument(ctx context.Context, id uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(ctx); err != nil {
		return err
	}
	e.meta.AddDeletedID(id)
	e.opts.Metrics.DocRemovedInc()
	return e.meta.Save(ctx)
}

// HasDocument reports whether id has ever been added or tombstoned.
func (e *Engine) HasDocument(ctx context.Context, id uint32) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(ctx); err != nil {
		return false, err
	}
	return e.meta.HasDocument(id), nil
}

// Search tokenizes query, evaluates each term against every catalogued
// segment of the matching type, and returns hits sorted by score
// descending. limit <= 0 returns every match.
func (e *Engine) Search(ctx context.Context, query Query, limit int) ([]Hit, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(ctx); err != nil {
		return nil, err
	}

	tokens := e.opts.SearchTokenizer(query)
	words, chars := doctok.Partition(tokens)

	scores := make(map[uint32]float64)
	matched := make(map[uint32]map[string]struct{})

	if err := e.accumulate(ctx, typeWord, words, scores, matched); err != nil {
		return nil, err
	}
	if err := e.accumulate(ctx, typeChar, chars, scores, matched); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		toks := make([]string, 0, len(matched[id]))
		for t := range matched[id] {
			toks = append(toks, t)
		}
		sort.Strings(toks)
		hits = append(hits, Hit{ID: id, Score: score, Tokens: toks})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	e.opts.Metrics.ObserveSearch(time.Since(start).Seconds(), len(hits))

	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (e *Engine) accumulate(ctx context.Context, indexType string, terms []string, scores map[uint32]float64, matched map[uint32]map[string]struct{}) error {
	if len(terms) == 0 {
		return nil
	}
	descriptors := e.meta.GetSegments(indexType)
	for _, term := range terms {
		weight := 1 + 0.1*float64(len([]rune(term)))
		for _, desc := range descriptors {
			seg, err := e.ensureSegmentLoaded(ctx, indexType, desc.Filename)
			if err != nil {
				log.Warn("segment unavailable during search, skipping", "file", desc.Filename, "err", err)
				continue
			}
			if seg == nil {
				continue
			}
			for _, id := range seg.Search(term, e.hashFn) {
				if e.meta.IsDeleted(id) {
					continue
				}
				scores[id] += weight
				if matched[id] == nil {
					matched[id] = make(map[string]struct{})
				}
				matched[id][term] = struct{}{}
			}
		}
	}
	return nil
}

func (e *Engine) ensureSegmentLoaded(ctx context.Context, indexType, filename string) (*segment.Segment, error) {
	handles := e.segmentsFor(indexType)
	if seg, ok := handles[filename]; ok {
		return seg, nil
	}
	seg := segment.New(e.hashFn.Width())
	if err := seg.Load(ctx, e.store, filename); err != nil {
		return nil, nil
	}
	handles[filename] = seg
	return seg, nil
}

// GetStatus reports segment counts, tombstone count, log sizes, and batch
// state.
func (e *Engine) GetStatus(ctx context.Context) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(ctx); err != nil {
		return Status{}, err
	}
	wordSize, err := cachelog.Size(ctx, e.store, cachelog.Name(typeWord))
	if err != nil {
		return Status{}, err
	}
	charSize, err := cachelog.Size(ctx, e.store, cachelog.Name(typeChar))
	if err != nil {
		return Status{}, err
	}
	return Status{
		WordSegments:  len(e.meta.GetSegments(typeWord)),
		CharSegments:  len(e.meta.GetSegments(typeChar)),
		Deleted:       e.meta.DeletedCount(),
		WordCacheSize: wordSize,
		CharCacheSize: charSize,
		InBatch:       e.inBatch,
	}, nil
}

// ClearAll wipes every blob under the store's namespace and resets the
// engine to its uninitialized state.
func (e *Engine) ClearAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.ClearAll(ctx); err != nil {
		return ftxerr.Storage("engine.ClearAll", "*", err)
	}
	e.meta.Reset()
	e.wordSegments = make(map[string]*segment.Segment)
	e.charSegments = make(map[string]*segment.Segment)
	e.initialized = false
	e.inBatch = false
	e.pendingWord = 0
	e.pendingChar = 0
	return nil
}
