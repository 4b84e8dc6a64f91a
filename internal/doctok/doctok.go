// Package doctok implements the engine's default tokenizer and the
// word/char length partition every intake and query path applies to
// whatever tokenizer is in effect (default or caller-supplied).
//
// The default tokenizer lower-cases its input and applies Unicode text
// segmentation (UAX #29) via github.com/blevesearch/segment, which already
// distinguishes CJK ideograph and kana runs from ordinary letter/number
// runs — precisely the boundary this package's word/char split needs. If
// the segmenter yields nothing for non-empty input, Default falls back to a
// regex-style split on non-alphanumeric runes, still emitting one token per
// CJK ideograph rather than folding a whole run into a single token.
package doctok

import (
	"strings"
	"unicode"

	"github.com/blevesearch/segment"
)

// Default tokenizes text using Unicode word segmentation with lower-casing.
// It never returns empty-string tokens.
func Default(text string) []string {
	lowered := strings.ToLower(text)
	tokens := make([]string, 0, len(lowered)/4)
	seg := segment.NewWordSegmenter(strings.NewReader(lowered))
	sawSegment := false
	for seg.Segment() {
		sawSegment = true
		switch seg.Type() {
		case segment.Ideo, segment.Kana:
			appendRunes(&tokens, seg.Text())
		case segment.Letter, segment.Number:
			if t := seg.Text(); t != "" {
				tokens = append(tokens, t)
			}
		default:
			// Whitespace/punctuation boundary: contributes no token.
		}
	}
	if err := seg.Err(); err != nil || !sawSegment {
		return regexFallback(lowered)
	}
	return tokens
}

// regexFallback splits on any rune that is neither a letter nor a digit,
// same as the segmenter path, except by hand: contiguous letter/digit runs
// become one token each, and each CJK ideograph becomes its own token even
// mid-run, matching Default's treatment of Ideo/Kana segments.
func regexFallback(text string) []string {
	tokens := make([]string, 0, len(text)/4)
	var run []rune
	flush := func() {
		if len(run) > 0 {
			tokens = append(tokens, string(run))
			run = run[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			run = append(run, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func appendRunes(tokens *[]string, text string) {
	for _, r := range text {
		*tokens = append(*tokens, string(r))
	}
}

// Partition splits deduplicated tokens into word tokens (code-point length
// ≥ 2) and char tokens (code-point length exactly 1). Empty tokens are
// discarded, matching the "length-0 tokens are discarded" rule; a
// pathological length-0 token can only occur from a misbehaving
// caller-supplied tokenizer since Default never emits one.
func Partition(tokens []string) (words []string, chars []string) {
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		n := len([]rune(tok))
		if n == 0 {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if n == 1 {
			chars = append(chars, tok)
		} else {
			words = append(words, tok)
		}
	}
	return words, chars
}
