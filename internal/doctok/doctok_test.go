package doctok

import (
	"reflect"
	"testing"
)

func TestDefaultBasic(t *testing.T) {
	tokens := Default("Hello world")
	want := []string{"hello", "world"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Default(%q) = %v, want %v", "Hello world", tokens, want)
	}
}

func TestDefaultCJKSplitsIntoRunes(t *testing.T) {
	tokens := Default("可是")
	want := []string{"可", "是"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Default(%q) = %v, want %v", "可是", tokens, want)
	}
}

func TestDefaultEmpty(t *testing.T) {
	tokens := Default("")
	if len(tokens) != 0 {
		t.Fatalf("Default(\"\") = %v, want empty", tokens)
	}
}

func TestDefaultPunctuationOnly(t *testing.T) {
	tokens := Default("... !!!")
	if len(tokens) != 0 {
		t.Fatalf("Default of punctuation-only text = %v, want empty", tokens)
	}
}

func TestPartitionSplitsByLength(t *testing.T) {
	words, chars := Partition([]string{"ab", "c", "d", "abc", "c"})
	wantWords := []string{"ab", "abc"}
	wantChars := []string{"c", "d"}
	if !reflect.DeepEqual(words, wantWords) {
		t.Fatalf("words = %v, want %v", words, wantWords)
	}
	if !reflect.DeepEqual(chars, wantChars) {
		t.Fatalf("chars = %v, want %v", chars, wantChars)
	}
}

func TestPartitionDedupesPerDocument(t *testing.T) {
	words, chars := Partition([]string{"ab", "ab", "ab"})
	if len(words) != 1 || len(chars) != 0 {
		t.Fatalf("expected a single deduped word token, got words=%v chars=%v", words, chars)
	}
}

func TestPartitionDiscardsEmptyTokens(t *testing.T) {
	words, chars := Partition([]string{"", "a", ""})
	if len(words) != 0 || len(chars) != 1 {
		t.Fatalf("expected only the non-empty char token, got words=%v chars=%v", words, chars)
	}
}
