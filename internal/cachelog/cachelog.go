// Package cachelog implements the intermediate cache: a durable, ordered,
// byte-offset-addressable append-only log of tokenized documents, one file
// per index type (word_cache.bin, char_cache.bin). Intake persists here
// before any segment is touched; if the process dies between an append and
// a segment update, the tail segment is rebuilt from the log range that was
// never materialized. No write-ahead record beyond the log itself is
// needed — this is the module's entire crash-tolerance story.
package cachelog

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/arjunvsood/ftindex/blobstore"
	"github.com/arjunvsood/ftindex/pkg/ftxerr"
	"github.com/arjunvsood/ftindex/pkg/logging"
)

// recordSeparator terminates every framed record, enabling tolerant
// scanning of a possibly-truncated tail.
const recordSeparator = 0x1E

const maxTokenBytes = 0xFFFF

var log = logging.WithComponent("cachelog")

// TokenizedDoc is one document's deduplicated token list, ready to be
// framed into the log or to feed a segment build.
type TokenizedDoc struct {
	ID     uint32
	Tokens []string
}

// AppendBatch frames every doc into one contiguous buffer and appends it to
// name in a single store.Append call — the core's crash-safety primitive:
// either the whole batch lands, or none of it does. It returns the log's
// new total size.
func AppendBatch(ctx context.Context, store blobstore.Store, name string, docs []TokenizedDoc) (uint64, error) {
	if len(docs) == 0 {
		return store.Size(ctx, name)
	}
	buf := make([]byte, 0, estimateSize(docs))
	for _, doc := range docs {
		buf = appendRecord(buf, doc)
	}
	if err := store.Append(ctx, name, buf); err != nil {
		return 0, ftxerr.Storage("cachelog.AppendBatch", name, err)
	}
	size, err := store.Size(ctx, name)
	if err != nil {
		return 0, ftxerr.Storage("cachelog.AppendBatch", name, err)
	}
	log.Debug("appended batch", "log", name, "docs", len(docs), "new_size", size)
	return size, nil
}

func estimateSize(docs []TokenizedDoc) int {
	n := 0
	for _, d := range docs {
		n += 4 + 4 + 1
		for _, tok := range d.Tokens {
			n += 2 + len(tok)
		}
	}
	return n
}

func appendRecord(buf []byte, doc TokenizedDoc) []byte {
	clamped := make([]string, 0, len(doc.Tokens))
	for _, tok := range doc.Tokens {
		b := []byte(tok)
		if len(b) > maxTokenBytes {
			b = b[:maxTokenBytes]
		}
		clamped = append(clamped, string(b))
	}
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], doc.ID)
	buf = append(buf, idBuf[:]...)
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(clamped)))
	buf = append(buf, countBuf[:]...)
	for _, tok := range clamped {
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(tok)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, tok...)
	}
	buf = append(buf, recordSeparator)
	return buf
}

// Size returns the current length of the named log, 0 if it does not yet
// exist.
func Size(ctx context.Context, store blobstore.Store, name string) (uint64, error) {
	size, err := store.Size(ctx, name)
	if err != nil {
		return 0, ftxerr.Storage("cachelog.Size", name, err)
	}
	return size, nil
}

// ReadRange decodes every framed record in the half-open byte range
// [start, end) of the named log. It stops cleanly at the first record it
// cannot fully decode (a truncated tail, per spec's MalformedLogRecord
// policy) and returns whatever it successfully decoded before that point,
// rather than treating truncation as a hard error.
func ReadRange(ctx context.Context, store blobstore.Store, name string, start, end uint64) ([]TokenizedDoc, error) {
	raw, ok, err := store.ReadRange(ctx, name, start, end)
	if err != nil {
		return nil, ftxerr.Storage("cachelog.ReadRange", name, err)
	}
	if !ok {
		return nil, nil
	}
	var docs []TokenizedDoc
	offset := 0
	for offset < len(raw) {
		doc, consumed, ok := decodeRecord(raw[offset:])
		if !ok {
			if offset < len(raw) {
				log.Error("truncated log record, stopping scan",
					"log", name, "offset_in_range", offset)
			}
			break
		}
		docs = append(docs, doc)
		offset += consumed
	}
	return docs, nil
}

// decodeRecord decodes one framed record from the front of buf. ok is false
// if buf does not contain a complete, well-formed record (truncated tail or
// missing separator), in which case consumed and doc are meaningless.
func decodeRecord(buf []byte) (doc TokenizedDoc, consumed int, ok bool) {
	if len(buf) < 8 {
		return TokenizedDoc{}, 0, false
	}
	id := binary.LittleEndian.Uint32(buf[0:4])
	tokenCount := binary.LittleEndian.Uint32(buf[4:8])
	pos := 8
	tokens := make([]string, 0, tokenCount)
	for i := uint32(0); i < tokenCount; i++ {
		if pos+2 > len(buf) {
			return TokenizedDoc{}, 0, false
		}
		tokLen := int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if pos+tokLen > len(buf) {
			return TokenizedDoc{}, 0, false
		}
		tokens = append(tokens, string(buf[pos:pos+tokLen]))
		pos += tokLen
	}
	if pos >= len(buf) || buf[pos] != recordSeparator {
		return TokenizedDoc{}, 0, false
	}
	pos++
	return TokenizedDoc{ID: id, Tokens: tokens}, pos, true
}

// Name returns the log filename for the given index type ("word" or
// "char").
func Name(indexType string) string {
	return fmt.Sprintf("%s_cache.bin", indexType)
}
