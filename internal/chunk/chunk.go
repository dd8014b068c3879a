// Package chunk splits cleaned page text into token-bounded, overlapping
// windows suitable for embedding.
package chunk

import (
	"strings"
)

// Tokenizer converts text to and from token sequences. Implementations
// must round-trip: Decode(Encode(s)) yields s for any input they accept.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Count(text string) int
}

// Splitter produces overlapping token windows from text.
type Splitter struct {
	tok       Tokenizer
	chunkSize int
	overlap   int
}

// NewSplitter builds a Splitter. Overlap is clamped below chunkSize so the
// window always advances.
func NewSplitter(tok Tokenizer, chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Splitter{tok: tok, chunkSize: chunkSize, overlap: overlap}
}

// Split cuts text into chunks of at most chunkSize tokens, each sharing
// overlap tokens with its predecessor. The final window always reaches the
// end of the text, so no trailing content is dropped. Blank input yields
// nil.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := s.tok.Encode(text)
	if len(tokens) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(tokens) {
		end := start + s.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, s.tok.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
		start = end - s.overlap
	}
	return chunks
}

// SplitCapped behaves like Split but keeps at most maxChunks windows,
// dropping the tail. maxChunks <= 0 means unlimited.
func (s *Splitter) SplitCapped(text string, maxChunks int) []string {
	chunks := s.Split(text)
	if maxChunks > 0 && len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	return chunks
}

// Count returns the token count of text under the splitter's tokenizer.
func (s *Splitter) Count(text string) int {
	return s.tok.Count(text)
}

// Truncate cuts text down to at most maxTokens tokens.
func (s *Splitter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := s.tok.Encode(text)
	if len(tokens) <= maxTokens {
		return text
	}
	return s.tok.Decode(tokens[:maxTokens])
}

// ByParagraphs groups paragraphs into chunks of roughly targetSize tokens,
// never splitting inside a paragraph. A single oversized paragraph becomes
// its own chunk.
func (s *Splitter) ByParagraphs(text string, targetSize int) []string {
	if targetSize <= 0 {
		targetSize = s.chunkSize
	}

	var (
		chunks  []string
		current []string
		size    int
	)
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := s.tok.Count(para)
		if size+n > targetSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = []string{para}
			size = n
			continue
		}
		current = append(current, para)
		size += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}
