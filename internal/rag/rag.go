// Package rag wires the retrieval-and-synthesis pipeline: segmentation,
// indexing, two-stage ranking, context assembly, generation and quiz
// synthesis. External services are injected at construction time.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"study-guide/internal/chunker"
	"study-guide/internal/config"
	"study-guide/internal/embedding"
	"study-guide/internal/generator"
	"study-guide/internal/models"
	"study-guide/internal/quiz"
	"study-guide/internal/ranker"
)

// Index is the vector index port. Implementations must scope every
// write and query to an owner; topic search never crosses tenants.
type Index interface {
	Upsert(ctx context.Context, embeddings []models.ChunkEmbedding) (models.UpsertReport, error)
	Query(ctx context.Context, ownerID, query string, topK int) ([]models.ScoredChunk, error)
	DeleteDocument(ctx context.Context, ownerID, documentID string) error
	Stats(ctx context.Context) (models.IndexStats, error)
}

// IngestReport describes the outcome of a document ingestion.
type IngestReport struct {
	DocumentID string
	Chunks     int
	Upsert     models.UpsertReport
}

// RAG is the pipeline facade.
type RAG struct {
	index        Index
	embedder     embeddings.Embedder
	ranker       *ranker.Ranker
	orchestrator *generator.Orchestrator
	quizGen      *quiz.Generator
	cfg          *config.Config
}

func NewRAG(index Index, embedder embeddings.Embedder, rk *ranker.Ranker, orch *generator.Orchestrator, quizGen *quiz.Generator, cfg *config.Config) *RAG {
	return &RAG{
		index:        index,
		embedder:     embedder,
		ranker:       rk,
		orchestrator: orch,
		quizGen:      quizGen,
		cfg:          cfg,
	}
}

// Ingest segments the document text, embeds the chunks and writes them
// to the index under the owner. Text that produces zero chunks is a
// valid, empty ingestion, not a failure: there is simply no indexable
// content.
func (r *RAG) Ingest(ctx context.Context, ownerID, documentID, text string) (IngestReport, error) {
	if ownerID == "" {
		return IngestReport{}, &models.InputError{Field: "owner_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(text) == "" {
		return IngestReport{}, &models.InputError{Field: "text", Reason: "must not be empty"}
	}

	report := IngestReport{DocumentID: documentID}

	chunks := chunker.Segment(text, chunker.Options{
		ChunkSize:         r.cfg.RAG.ChunkSize,
		Overlap:           r.cfg.RAG.ChunkOverlap,
		MinChunkLength:    r.cfg.RAG.MinChunkLength,
		SentencesPerChunk: r.cfg.RAG.SentencesPerChunk,
	})
	if len(chunks) == 0 {
		log.Info().Str("document", documentID).Msg("no indexable content in document")
		return report, nil
	}
	for i := range chunks {
		chunks[i].ID = fmt.Sprintf("%s-%d", documentID, chunks[i].ChunkIndex)
		chunks[i].DocumentID = documentID
		chunks[i].OwnerID = ownerID
	}
	report.Chunks = len(chunks)

	chunkEmbeddings, err := embedding.EmbedChunks(ctx, r.embedder, chunks)
	if err != nil {
		return report, err
	}

	report.Upsert, err = r.index.Upsert(ctx, chunkEmbeddings)
	if err != nil {
		return report, err
	}
	return report, nil
}

// StudyGuide retrieves the owner's chunks for the topic, ranks them and
// generates a grounded study guide. A nil guide with nil error means no
// relevant content was found, which is an expected outcome rather than
// a failure.
func (r *RAG) StudyGuide(ctx context.Context, ownerID, topic string) (*models.StudyGuide, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, &models.InputError{Field: "topic", Reason: "must not be empty"}
	}

	// retrieve a candidate set wide enough for stage-2 reranking
	retrieveK := max(r.cfg.RAG.TopK, r.cfg.Ranking.RerankCandidates)
	candidates, err := r.index.Query(ctx, ownerID, topic, retrieveK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		log.Info().Str("topic", topic).Msg("no chunks found for topic")
		return nil, nil
	}

	chunks := make([]models.Chunk, len(candidates))
	for i, sc := range candidates {
		chunks[i] = sc.Chunk
	}
	return r.guideFromChunks(ctx, topic, chunks)
}

// StudyGuideFromChunks ranks an in-memory chunk set and generates a
// guide without touching the index.
func (r *RAG) StudyGuideFromChunks(ctx context.Context, topic string, chunks []models.Chunk) (*models.StudyGuide, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, &models.InputError{Field: "topic", Reason: "must not be empty"}
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return r.guideFromChunks(ctx, topic, chunks)
}

func (r *RAG) guideFromChunks(ctx context.Context, topic string, chunks []models.Chunk) (*models.StudyGuide, error) {
	ranked, err := r.ranker.Rank(ctx, chunks, topic)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	var contextText strings.Builder
	for _, sc := range ranked {
		contextText.WriteString(sc.Chunk.Content)
		contextText.WriteString("\n\n")
	}

	guide, err := r.orchestrator.Generate(ctx, topic, contextText.String())
	if err != nil {
		return nil, err
	}
	return &guide, nil
}

// Quiz retrieves the owner's chunk pool for the topic and synthesizes
// quiz items from it. Best-effort: fewer items than requested is valid.
func (r *RAG) Quiz(ctx context.Context, ownerID, topic string, numQuestions int) ([]models.QuizItem, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, &models.InputError{Field: "topic", Reason: "must not be empty"}
	}
	retrieveK := max(r.cfg.RAG.TopK, r.cfg.Ranking.RerankCandidates)
	candidates, err := r.index.Query(ctx, ownerID, topic, retrieveK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var pool strings.Builder
	for _, sc := range candidates {
		pool.WriteString(sc.Chunk.Content)
		pool.WriteString(" ")
	}
	return r.quizGen.Generate(pool.String(), numQuestions), nil
}

// QuizFromText synthesizes quiz items directly from source text,
// independently of ranking and the index.
func (r *RAG) QuizFromText(text string, numQuestions int) []models.QuizItem {
	return r.quizGen.Generate(text, numQuestions)
}

// DeleteDocument removes a document's chunks from the index.
func (r *RAG) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	return r.index.DeleteDocument(ctx, ownerID, documentID)
}

// Stats reports the size of the backing index.
func (r *RAG) Stats(ctx context.Context) (models.IndexStats, error) {
	return r.index.Stats(ctx)
}
