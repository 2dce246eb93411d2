package contextbuilder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer counts whitespace words as tokens so budgets are easy to
// reason about in tests.
type wordTokenizer struct {
	ids map[string]int
	rev map[int]string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: make(map[string]int), rev: make(map[int]string)}
}

func (w *wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	out := make([]int, len(words))
	for i, word := range words {
		id, ok := w.ids[word]
		if !ok {
			id = len(w.ids) + 1
			w.ids[word] = id
			w.rev[id] = word
		}
		out[i] = id
	}
	return out
}

func (w *wordTokenizer) Decode(ids []int) string {
	words := make([]string, len(ids))
	for i, id := range ids {
		words[i] = w.rev[id]
	}
	return strings.Join(words, " ")
}

const himalayaText = "The Himalayas were formed 50 million years ago. " +
	"Mount Everest is the tallest peak. " +
	"The range spans five countries."

func TestAssembleEmptyInput(t *testing.T) {
	b := New(newWordTokenizer())
	assert.Equal(t, "", b.Assemble("", "mountains", 100))
}

func TestAssembleKeepsEverythingUnderBudget(t *testing.T) {
	b := New(newWordTokenizer())
	out := b.Assemble(himalayaText, "Everest", 1000)
	assert.Contains(t, out, "Himalayas")
	assert.Contains(t, out, "Everest")
	assert.Contains(t, out, "five countries")
}

func TestAssembleFallsBackToLeadingSentences(t *testing.T) {
	b := New(newWordTokenizer())
	text := "One fish here. Two fish there. Red fish swims. Blue fish sleeps. " +
		"Old fish rests. New fish arrives. Last fish leaves."
	out := b.Assemble(text, "submarine", 1000)

	// first five sentences only
	assert.Contains(t, out, "One fish here.")
	assert.Contains(t, out, "Old fish rests.")
	assert.NotContains(t, out, "New fish arrives.")
	assert.NotContains(t, out, "Last fish leaves.")
}

func TestAssembleTrimsNonTopicSentencesFirst(t *testing.T) {
	tok := newWordTokenizer()
	b := New(tok)
	text := "Filler sentence number one sits here. " +
		"The glacier carved this valley over millennia. " +
		"Filler sentence number two sits here also. " +
		"Filler sentence number three keeps talking forever."

	// budget that forces removal of some non-topic sentences
	out := b.Assemble(text, "glacier", 10)
	assert.Contains(t, out, "glacier", "topic sentence must survive trimming")
	assert.LessOrEqual(t, len(tok.Encode(out)), 10)
}

func TestAssembleBoundedForFiniteBudget(t *testing.T) {
	tok := newWordTokenizer()
	b := New(tok)
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("The glacier moves slowly through the mountain valley every single year without pause. ")
	}
	out := b.Assemble(sb.String(), "glacier", 20)
	require.NotEmpty(t, out)
	assert.LessOrEqual(t, len(tok.Encode(out)), 20)
}

func TestAssembleHardTruncateEndsAtSentenceBoundary(t *testing.T) {
	tok := newWordTokenizer()
	b := New(tok)
	// a single topic sentence larger than the budget forces the
	// token-level fallback
	text := "The glacier " + strings.Repeat("keeps moving onward ", 30) + "and never stops."
	out := b.Assemble(text, "glacier", 12)
	require.NotEmpty(t, out)
	if !strings.HasSuffix(out, ".") {
		assert.True(t, strings.HasSuffix(out, "..."), "expected ellipsis fallback, got %q", out)
	}
}

func TestAssembleNonEmptyForNonEmptyInput(t *testing.T) {
	b := New(newWordTokenizer())
	out := b.Assemble("Just one tiny sentence.", "anything", 1)
	assert.NotEmpty(t, out)
}

func TestHardTruncateLastWordEllipsis(t *testing.T) {
	tok := newWordTokenizer()
	b := New(tok)
	out := b.hardTruncate("word1 word2 word3 word4 word5", 3)
	assert.Equal(t, "word1 word2...", out)
}
