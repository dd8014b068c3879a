package chunk

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer wraps a BPE encoding from the tiktoken vocabulary.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizerForModel resolves the BPE encoding for an embedding model
// name, falling back to the cl100k_base vocabulary for unknown models.
func NewTokenizerForModel(model string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenizer returns the best available tokenizer for model. When the
// BPE vocabulary cannot be loaded it degrades to a WordTokenizer, whose
// word-per-token approximation keeps Splitter windows word-aligned.
func NewTokenizer(model string) Tokenizer {
	if tok, err := NewTokenizerForModel(model); err == nil {
		return tok
	}
	return NewWordTokenizer()
}

// WordTokenizer treats each whitespace-separated word as one token and
// reconstructs text with single spaces. Token ids index into a vocabulary
// built up across Encode calls, so Decode round-trips any slice produced
// by the same instance.
type WordTokenizer struct {
	mu    sync.Mutex
	ids   map[string]int
	words []string
}

func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{ids: make(map[string]int)}
}

func (w *WordTokenizer) Encode(text string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()

	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i, word := range fields {
		id, ok := w.ids[word]
		if !ok {
			id = len(w.words)
			w.ids[word] = id
			w.words = append(w.words, word)
		}
		tokens[i] = id
	}
	return tokens
}

func (w *WordTokenizer) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(tokens))
	for _, id := range tokens {
		if id >= 0 && id < len(w.words) {
			out = append(out, w.words[id])
		}
	}
	return strings.Join(out, " ")
}

func (w *WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}
