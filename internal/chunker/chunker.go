package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"study-guide/internal/models"
)

const (
	defaultChunkSize         = 600
	defaultChunkOverlap      = 100
	defaultMinChunkLength    = 100
	defaultSentencesPerChunk = 3
)

// Options bounds the segmentation. Zero values fall back to defaults.
type Options struct {
	ChunkSize         int
	Overlap           int
	MinChunkLength    int
	SentencesPerChunk int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap == 0 {
		o.Overlap = defaultChunkOverlap
	}
	if o.Overlap >= o.ChunkSize {
		o.Overlap = o.ChunkSize / 2
	}
	if o.MinChunkLength <= 0 {
		o.MinChunkLength = defaultMinChunkLength
	}
	if o.SentencesPerChunk <= 0 {
		o.SentencesPerChunk = defaultSentencesPerChunk
	}
	return o
}

// Segment splits text into sentence-respecting chunks with overlap.
// Pure function: no I/O, deterministic for identical inputs.
//
// A chunk closes when appending the next sentence would exceed
// Options.ChunkSize or when the per-chunk sentence cap is reached.
// Chunks shorter than MinChunkLength are dropped, not erred. The next
// chunk is seeded with the trailing Overlap characters of the previous
// one. A single sentence longer than ChunkSize is hard-split into
// fixed-size slices. Empty input yields an empty result.
func Segment(text string, opts Options) []models.Chunk {
	opts = opts.withDefaults()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := SplitSentences(text)

	var chunks []models.Chunk
	var buf strings.Builder
	sentenceCount := 0

	flush := func() {
		content := strings.TrimSpace(buf.String())
		buf.Reset()
		sentenceCount = 0
		if len(content) < opts.MinChunkLength {
			if content != "" {
				log.Debug().Int("length", len(content)).Msg("skipping short chunk")
			}
			return
		}
		chunks = append(chunks, models.Chunk{Content: content, ChunkIndex: len(chunks)})
		// seed the next chunk with the tail of this one so consecutive
		// chunks share context
		if opts.Overlap > 0 && len(content) > opts.Overlap {
			start := len(content) - opts.Overlap
			// advance to a rune boundary so the seed stays valid UTF-8
			for start < len(content) && !utf8.RuneStart(content[start]) {
				start++
			}
			buf.WriteString(content[start:])
			sentenceCount = 1
		}
	}

	for _, sentence := range sentences {
		// oversize sentence: hard-split rather than stalling
		if len(sentence) > opts.ChunkSize {
			flush()
			buf.Reset()
			sentenceCount = 0
			for start := 0; start < len(sentence); {
				end := min(start+opts.ChunkSize, len(sentence))
				// back the cut up to a rune boundary so multibyte runes
				// stay intact
				for end > start+1 && end < len(sentence) && !utf8.RuneStart(sentence[end]) {
					end--
				}
				part := sentence[start:end]
				if len(part) >= opts.MinChunkLength {
					chunks = append(chunks, models.Chunk{Content: part, ChunkIndex: len(chunks)})
				} else {
					log.Debug().Int("length", len(part)).Msg("skipping short split part")
				}
				start = end
			}
			continue
		}

		if buf.Len() > 0 && (buf.Len()+1+len(sentence) > opts.ChunkSize || sentenceCount >= opts.SentencesPerChunk) {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(sentence)
		sentenceCount++
	}

	// the final chunk still has to meet the minimum length
	if content := strings.TrimSpace(buf.String()); len(content) >= opts.MinChunkLength {
		chunks = append(chunks, models.Chunk{Content: content, ChunkIndex: len(chunks)})
	} else if content != "" {
		log.Debug().Int("length", len(content)).Msg("skipping final short chunk")
	}

	log.Debug().Int("chunks", len(chunks)).Msg("segmented text")
	return chunks
}

// SplitSentences splits text on sentence-ending punctuation followed by
// whitespace. Trailing text without terminal punctuation is kept as a
// final sentence.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// consume a run of closing punctuation, e.g. "?!" or "..."
		j := i
		for j+1 < len(runes) && (runes[j+1] == '.' || runes[j+1] == '!' || runes[j+1] == '?') {
			j++
		}
		if j+1 == len(runes) || isSpace(runes[j+1]) {
			s := strings.TrimSpace(string(runes[start : j+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = j + 1
		}
		i = j
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
