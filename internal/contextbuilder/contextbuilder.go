package contextbuilder

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"study-guide/internal/chunker"
	"study-guide/internal/tokenizer"
)

const (
	// sentences kept on each side of a topic sentence
	contextWindow = 3
	// sentences used when the text never mentions the topic
	fallbackSentences = 5
)

// Builder assembles a token-bounded generation context that keeps the
// sentences mentioning the topic and their surrounding scaffolding.
type Builder struct {
	tok tokenizer.Tokenizer
}

func New(tok tokenizer.Tokenizer) *Builder {
	return &Builder{tok: tok}
}

// Assemble selects the sentences around every topic mention, then trims
// non-topic sentences until the text fits maxTokens. It always returns a
// non-empty string for non-empty input and never errors on over-length
// input; a hard token-level truncation ends at the last sentence
// boundary, or the last whole word followed by an ellipsis.
func (b *Builder) Assemble(text, topic string, maxTokens int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	sentences := chunker.SplitSentences(text)
	if len(sentences) == 0 {
		return b.hardTruncate(text, maxTokens)
	}

	topicLower := strings.ToLower(topic)
	isTopic := make([]bool, len(sentences))
	hasTopic := false
	for i, s := range sentences {
		if topicLower != "" && strings.Contains(strings.ToLower(s), topicLower) {
			isTopic[i] = true
			hasTopic = true
		}
	}

	var selected []int
	if !hasTopic {
		// no anchor to build around; fall back to the opening sentences
		n := min(fallbackSentences, len(sentences))
		for i := 0; i < n; i++ {
			selected = append(selected, i)
		}
		log.Debug().Msg("no topic sentences found, using leading sentences")
	} else {
		picked := make(map[int]struct{})
		for i := range sentences {
			if !isTopic[i] {
				continue
			}
			for j := max(0, i-contextWindow); j <= min(len(sentences)-1, i+contextWindow); j++ {
				picked[j] = struct{}{}
			}
		}
		for i := range picked {
			selected = append(selected, i)
		}
		sort.Ints(selected)
	}

	join := func(idxs []int) string {
		parts := make([]string, len(idxs))
		for i, idx := range idxs {
			parts[i] = sentences[idx]
		}
		return strings.Join(parts, " ")
	}

	assembled := join(selected)
	if maxTokens <= 0 || len(b.tok.Encode(assembled)) <= maxTokens {
		return assembled
	}

	// drop non-topic sentences from the end, then from the beginning,
	// re-measuring after each removal
	for pass := 0; pass < 2; pass++ {
		fromEnd := pass == 0
		for len(selected) > 1 && len(b.tok.Encode(assembled)) > maxTokens {
			removed := false
			if fromEnd {
				for i := len(selected) - 1; i >= 0; i-- {
					if !isTopic[selected[i]] {
						selected = append(selected[:i], selected[i+1:]...)
						removed = true
						break
					}
				}
			} else {
				for i := 0; i < len(selected); i++ {
					if !isTopic[selected[i]] {
						selected = append(selected[:i], selected[i+1:]...)
						removed = true
						break
					}
				}
			}
			if !removed {
				break
			}
			assembled = join(selected)
		}
	}

	if len(b.tok.Encode(assembled)) <= maxTokens {
		return assembled
	}
	// topic sentences alone still overflow the budget
	return b.hardTruncate(assembled, maxTokens)
}

// hardTruncate cuts at the token level and backs up to the last complete
// sentence, or failing that the last complete word plus an ellipsis.
func (b *Builder) hardTruncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	ids := b.tok.Encode(text)
	if len(ids) <= maxTokens {
		return text
	}
	truncated := b.tok.Decode(ids[:maxTokens])

	if lastPeriod := strings.LastIndex(truncated, "."); lastPeriod > 0 {
		return truncated[:lastPeriod+1]
	}
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 0 {
		return truncated[:lastSpace] + "..."
	}
	return truncated + "..."
}
