package models

// Chunk represents a bounded, sentence-respecting slice of a document.
type Chunk struct {
	ID         string
	DocumentID string
	OwnerID    string
	Content    string
	ChunkIndex int
}

// WordCount returns the whitespace-separated word count of the chunk content.
func (c Chunk) WordCount() int {
	n := 0
	inWord := false
	for _, r := range c.Content {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				n++
			}
			inWord = true
		}
	}
	return n
}

// ScoredChunk pairs a chunk with a transient relevance score.
// Scores are recomputed per query and never persisted.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// ChunkEmbedding carries a chunk together with its embedding vector,
// ready to be written to the vector index.
type ChunkEmbedding struct {
	Chunk     Chunk
	Embedding []float32
}

// StudyGuide is the generated output for a topic. The caller owns it
// once returned; this core does not persist it.
type StudyGuide struct {
	Topic    string
	Content  string
	Degraded bool
}

// QuizItem is a fill-in-the-blank question with shuffled options,
// exactly one of which is the correct answer.
type QuizItem struct {
	Question      string
	Options       []string
	CorrectAnswer string
}
