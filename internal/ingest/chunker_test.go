package ingest

import (
	"strconv"
	"strings"
	"testing"
)

func words(count int) string {
	parts := make([]string, count)
	for index := range parts {
		parts[index] = "w" + strconv.Itoa(index)
	}
	return strings.Join(parts, " ")
}

func TestSplitWordsShortTextIsSingleChunk(t *testing.T) {
	chunks := SplitWords("just a few words here", 200, 20)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "just a few words here" {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplitWordsEmptyText(t *testing.T) {
	if chunks := SplitWords("   ", 200, 20); chunks != nil {
		t.Fatalf("expected nil for blank text, got %v", chunks)
	}
}

func TestSplitWordsOverlapsConsecutiveChunks(t *testing.T) {
	chunks := SplitWords(words(25), 10, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	if len(first) != 10 {
		t.Fatalf("expected full first window, got %d words", len(first))
	}
	// Step is 8, so the second window starts at word 8 and repeats the
	// last two words of the first.
	if first[8] != second[0] || first[9] != second[1] {
		t.Fatalf("expected 2-word overlap, got %v vs %v", first[8:], second[:2])
	}
}

func TestSplitWordsCoversEveryWord(t *testing.T) {
	text := words(57)
	chunks := SplitWords(text, 10, 3)

	joined := strings.Fields(strings.Join(chunks, " "))
	original := strings.Fields(text)
	lastChunk := strings.Fields(chunks[len(chunks)-1])
	if lastChunk[len(lastChunk)-1] != original[len(original)-1] {
		t.Fatalf("final word missing from last chunk")
	}
	if len(joined) < len(original) {
		t.Fatalf("chunks dropped words: %d < %d", len(joined), len(original))
	}
}

func TestSplitWordsInvalidOverlapFallsBack(t *testing.T) {
	// Overlap >= chunk size would loop forever; it falls back to a tenth.
	chunks := SplitWords(words(30), 10, 10)
	if len(chunks) < 3 {
		t.Fatalf("expected progress despite bad overlap, got %d chunks", len(chunks))
	}
}
