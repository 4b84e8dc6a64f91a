package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/arjunvsood/ftindex/blobstore/memstore"
	"github.com/arjunvsood/ftindex/pkg/ftxerr"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Store == nil {
		opts.Store = memstore.New()
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// S1 — basic add/search/remove.
func TestBasicAddSearchRemove(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	if err := e.AddDocument(ctx, Document{ID: 1, Text: "Hello world"}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	hits, err := e.Search(ctx, NewQuery("hello"), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != 1 {
		t.Fatalf("Search(hello) = %+v, want one hit for id 1", hits)
	}
	if !almostEqual(hits[0].Score, 1.5) {
		t.Fatalf("score = %v, want ~1.5", hits[0].Score)
	}
	if len(hits[0].Tokens) != 1 || hits[0].Tokens[0] != "hello" {
		t.Fatalf("tokens = %v, want [hello]", hits[0].Tokens)
	}

	if err := e.RemoveDocument(ctx, 1); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	hits, err = e.Search(ctx, NewQuery("hello"), 0)
	if err != nil {
		t.Fatalf("Search after remove: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("Search(hello) after remove = %+v, want none", hits)
	}

	err = e.AddDocument(ctx, Document{ID: 1, Text: "x"})
	if !errors.Is(err, ftxerr.ErrIDTombstoned) {
		t.Fatalf("re-adding tombstoned id: err = %v, want ErrIDTombstoned", err)
	}
}

// S2 — batch then query.
func TestBatchThenQuery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	e.StartBatch()
	err := e.AddDocuments(ctx, []Document{
		{ID: 1, Text: "batch test"},
		{ID: 2, Text: "batch exam"},
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if err := e.EndBatch(ctx); err != nil {
		t.Fatalf("EndBatch: %v", err)
	}

	hits, err := e.Search(ctx, NewQuery("batch"), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search(batch) = %+v, want 2 hits", hits)
	}
	for _, h := range hits {
		found := false
		for _, tok := range h.Tokens {
			if tok == "batch" {
				found = true
			}
		}
		if !found {
			t.Fatalf("hit %+v missing 'batch' token", h)
		}
	}
}

// S3 — word/char split.
func TestWordCharSplit(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{
		IndexingTokenizer: func(doc Document) []string {
			if doc.Text == "abc" {
				return []string{"ab", "c"}
			}
			return []string{doc.Text}
		},
	})

	if err := e.AddDocument(ctx, Document{ID: 7, Text: "abc"}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	if hits, err := e.Search(ctx, NewQuery("ab"), 0); err != nil || len(hits) != 1 || hits[0].ID != 7 {
		t.Fatalf("Search(ab) = %+v, err = %v, want hit for id 7", hits, err)
	}
	if hits, err := e.Search(ctx, NewQuery("c"), 0); err != nil || len(hits) != 1 || hits[0].ID != 7 {
		t.Fatalf("Search(c) = %+v, err = %v, want hit for id 7", hits, err)
	}
	if hits, err := e.Search(ctx, NewQuery("d"), 0); err != nil || len(hits) != 0 {
		t.Fatalf("Search(d) = %+v, err = %v, want no hits", hits, err)
	}
}

// S4 — threshold rollover.
func TestThresholdRollover(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{
		WordSegmentTokenThreshold: 5,
		IndexingTokenizer: func(doc Document) []string {
			if doc.ID == 1 {
				return []string{"t1", "t2", "t3", "s4", "s5"}
			}
			return []string{"u1", "u2"}
		},
	})

	if err := e.AddDocument(ctx, Document{ID: 1, Text: "a"}); err != nil {
		t.Fatalf("AddDocument 1: %v", err)
	}
	status, err := e.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.WordSegments != 1 {
		t.Fatalf("WordSegments = %d, want 1", status.WordSegments)
	}

	if err := e.AddDocument(ctx, Document{ID: 2, Text: "b"}); err != nil {
		t.Fatalf("AddDocument 2: %v", err)
	}
	status, err = e.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.WordSegments != 2 {
		t.Fatalf("WordSegments = %d, want 2 (rollover expected)", status.WordSegments)
	}
}

// S5 — below minSave.
func TestBelowMinSaveDefersMaterialization(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := newTestEngine(t, Options{
		Store:            store,
		MinWordTokenSave: 5,
		IndexingTokenizer: func(doc Document) []string {
			return []string{"aa", "bb", "cc"}
		},
	})

	if err := e.AddDocument(ctx, Document{ID: 1, Text: "x"}); err != nil {
		t.Fatalf("AddDocument 1: %v", err)
	}
	names, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if containsSegmentFile(names) {
		t.Fatalf("expected no segment file materialized yet, got %v", names)
	}
	status, err := e.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.WordSegments != 1 {
		t.Fatalf("WordSegments = %d, want 1 (descriptor only)", status.WordSegments)
	}

	if err := e.AddDocument(ctx, Document{ID: 2, Text: "y"}); err != nil {
		t.Fatalf("AddDocument 2: %v", err)
	}
	names, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !containsSegmentFile(names) {
		t.Fatalf("expected segment file materialized after crossing minSave, got %v", names)
	}
	status, err = e.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.WordSegments != 1 {
		t.Fatalf("WordSegments = %d, want 1 (tail extended, not rolled over)", status.WordSegments)
	}
}

func containsSegmentFile(names []string) bool {
	for _, n := range names {
		if n == "word_seg_1.bin" {
			return true
		}
	}
	return false
}

// S6 — persistence and reload.
func TestPersistenceAndReload(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cjkTokenizer := func(doc Document) []string {
		var out []string
		for _, r := range doc.Text {
			out = append(out, string(r))
		}
		return out
	}

	a := newTestEngine(t, Options{Store: store, IndexingTokenizer: cjkTokenizer})
	a.StartBatch()
	err := a.AddDocuments(ctx, []Document{
		{ID: 1, Text: "其实"},
		{ID: 2, Text: "世界还是美好的"},
		{ID: 3, Text: "可是"},
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if err := a.EndBatch(ctx); err != nil {
		t.Fatalf("EndBatch: %v", err)
	}

	b := newTestEngine(t, Options{Store: store, IndexingTokenizer: cjkTokenizer})
	hits, err := b.Search(ctx, NewQuery("可"), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.ID == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("Search(可) = %+v, want id 3 present", hits)
	}
}

func TestInvariantAddedAndDeletedDisjoint(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	if err := e.AddDocument(ctx, Document{ID: 1, Text: "hello"}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := e.RemoveDocument(ctx, 1); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	has, err := e.HasDocument(ctx, 1)
	if err != nil || !has {
		t.Fatalf("HasDocument(1) = %v, %v, want true, nil", has, err)
	}
	hits, err := e.Search(ctx, NewQuery("hello"), 0)
	if err != nil || len(hits) != 0 {
		t.Fatalf("Search after remove = %+v, %v, want none", hits, err)
	}
}

func TestStrictAddConflict(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	if err := e.AddDocument(ctx, Document{ID: 1, Text: "a"}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	err := e.AddDocument(ctx, Document{ID: 1, Text: "b"})
	if !errors.Is(err, ftxerr.ErrIDConflict) {
		t.Fatalf("err = %v, want ErrIDConflict", err)
	}
}

func TestIfMissingVariantsAreLenient(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	if err := e.AddDocumentIfMissing(ctx, Document{ID: 1, Text: "a"}); err != nil {
		t.Fatalf("first AddDocumentIfMissing: %v", err)
	}
	if err := e.AddDocumentIfMissing(ctx, Document{ID: 1, Text: "b"}); err != nil {
		t.Fatalf("second AddDocumentIfMissing should be a no-op, got err: %v", err)
	}
	if err := e.RemoveDocument(ctx, 1); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	if err := e.AddDocumentIfMissing(ctx, Document{ID: 1, Text: "c"}); err != nil {
		t.Fatalf("AddDocumentIfMissing on tombstoned id should be a no-op, got err: %v", err)
	}
}

func TestEmptyTokenizerOutputStillMarksAdded(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{
		IndexingTokenizer: func(doc Document) []string { return nil },
	})
	if err := e.AddDocument(ctx, Document{ID: 9, Text: ""}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	has, err := e.HasDocument(ctx, 9)
	if err != nil || !has {
		t.Fatalf("HasDocument(9) = %v, %v, want true", has, err)
	}
	hits, err := e.Search(ctx, NewQuery("anything"), 0)
	if err != nil || len(hits) != 0 {
		t.Fatalf("Search = %+v, %v, want none", hits, err)
	}
}

func TestClearAllResetsEverything(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	if err := e.AddDocument(ctx, Document{ID: 1, Text: "hello"}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := e.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	has, err := e.HasDocument(ctx, 1)
	if err != nil || has {
		t.Fatalf("HasDocument(1) after ClearAll = %v, %v, want false", has, err)
	}
	status, err := e.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.WordSegments != 0 || status.Deleted != 0 {
		t.Fatalf("status after ClearAll = %+v, want zeroed", status)
	}
}

func TestSearchLimitTruncates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	for id := uint32(1); id <= 5; id++ {
		if err := e.AddDocument(ctx, Document{ID: id, Text: "shared term"}); err != nil {
			t.Fatalf("AddDocument %d: %v", id, err)
		}
	}
	hits, err := e.Search(ctx, NewQuery("shared"), 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Options{Store: memstore.New(), MinWordTokenSave: 10, WordSegmentTokenThreshold: 5})
	if !errors.Is(err, ftxerr.ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}
	_, err = New(Options{})
	if !errors.Is(err, ftxerr.ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid for missing Store", err)
	}
}
