package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer is the subword tokenizer shared by ranking, truncation and
// generation so that token counts mean the same thing everywhere.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
}

// Tiktoken wraps a tiktoken BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, e.g. "cl100k_base".
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(ids []int) string {
	return t.enc.Decode(ids)
}

// TokenSet returns the set of token IDs in text.
func TokenSet(t Tokenizer, text string) map[int]struct{} {
	ids := t.Encode(text)
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// OverlapRatio returns |a ∩ b| / |a|, or 0 when a is empty.
func OverlapRatio(a, b map[int]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	inter := 0
	for id := range a {
		if _, ok := b[id]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a))
}
