package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplitEmptyInput(t *testing.T) {
	t.Parallel()

	s := NewSplitter(NewWordTokenizer(), 100, 10)
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t "))
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	t.Parallel()

	s := NewSplitter(NewWordTokenizer(), 100, 10)
	text := words(50)
	got := s.Split(text)
	require.Len(t, got, 1)
	assert.Equal(t, text, got[0])
}

func TestSplitOverlapAndCoverage(t *testing.T) {
	t.Parallel()

	tok := NewWordTokenizer()
	s := NewSplitter(tok, 100, 20)
	text := words(250)

	chunks := s.Split(text)
	require.Len(t, chunks, 3)

	// Every window is within the size bound.
	for _, c := range chunks {
		assert.LessOrEqual(t, tok.Count(c), 100)
	}

	// Consecutive windows share the overlap region.
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	assert.Equal(t, first[len(first)-20:], second[:20])

	// The final window reaches the last word, so nothing is dropped.
	last := strings.Fields(chunks[len(chunks)-1])
	assert.Equal(t, "w249", last[len(last)-1])
}

func TestSplitExactBoundary(t *testing.T) {
	t.Parallel()

	s := NewSplitter(NewWordTokenizer(), 100, 20)
	chunks := s.Split(words(100))
	assert.Len(t, chunks, 1)
}

func TestSplitCapped(t *testing.T) {
	t.Parallel()

	s := NewSplitter(NewWordTokenizer(), 50, 5)
	chunks := s.SplitCapped(words(500), 3)
	assert.Len(t, chunks, 3)

	uncapped := s.SplitCapped(words(500), 0)
	assert.Greater(t, len(uncapped), 3)
}

func TestNewSplitterClampsOverlap(t *testing.T) {
	t.Parallel()

	// Overlap >= chunk size must still advance the window.
	s := NewSplitter(NewWordTokenizer(), 10, 50)
	chunks := s.Split(words(40))
	assert.NotEmpty(t, chunks)
	assert.Less(t, len(chunks), 40)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	s := NewSplitter(NewWordTokenizer(), 100, 0)
	text := words(30)
	assert.Equal(t, text, s.Truncate(text, 30))
	assert.Equal(t, words(10), s.Truncate(text, 10))
	assert.Equal(t, "", s.Truncate(text, 0))
}

func TestByParagraphs(t *testing.T) {
	t.Parallel()

	s := NewSplitter(NewWordTokenizer(), 100, 0)
	text := words(40) + "\n\n" + words(40) + "\n\n" + words(40)

	chunks := s.ByParagraphs(text, 90)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "\n\n")

	// An oversized paragraph still becomes one chunk.
	huge := s.ByParagraphs(words(300), 100)
	assert.Len(t, huge, 1)
}

func TestWordTokenizerRoundTrip(t *testing.T) {
	t.Parallel()

	tok := NewWordTokenizer()
	text := "the quick brown fox jumps over the lazy dog"
	assert.Equal(t, text, tok.Decode(tok.Encode(text)))
	assert.Equal(t, 9, tok.Count(text))
}
