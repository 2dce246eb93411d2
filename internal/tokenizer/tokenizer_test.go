package tokenizer

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// digitTokenizer treats every word as its own token ID, enough to
// exercise the set helpers without loading a BPE vocabulary.
type digitTokenizer struct{}

func (digitTokenizer) Encode(text string) []int {
	var ids []int
	for _, w := range strings.Fields(text) {
		n, err := strconv.Atoi(w)
		if err != nil {
			n = len(w)
		}
		ids = append(ids, n)
	}
	return ids
}

func (digitTokenizer) Decode(ids []int) string {
	words := make([]string, len(ids))
	for i, id := range ids {
		words[i] = strconv.Itoa(id)
	}
	return strings.Join(words, " ")
}

func TestTokenSet(t *testing.T) {
	set := TokenSet(digitTokenizer{}, "1 2 2 3")
	assert.Len(t, set, 3)
	_, ok := set[2]
	assert.True(t, ok)
}

func TestOverlapRatio(t *testing.T) {
	a := TokenSet(digitTokenizer{}, "1 2 3 4")
	b := TokenSet(digitTokenizer{}, "3 4 5 6")

	assert.InDelta(t, 0.5, OverlapRatio(a, b), 1e-9)
	assert.InDelta(t, 1.0, OverlapRatio(a, a), 1e-9)
	assert.InDelta(t, 0.0, OverlapRatio(a, TokenSet(digitTokenizer{}, "7 8")), 1e-9)
}

func TestOverlapRatioEmpty(t *testing.T) {
	empty := map[int]struct{}{}
	full := TokenSet(digitTokenizer{}, "1 2")
	assert.Equal(t, 0.0, OverlapRatio(empty, full))
	assert.Equal(t, 0.0, OverlapRatio(empty, empty))
}
