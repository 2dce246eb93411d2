package chromemdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-guide/internal/models"
)

// stubEmbedding derives a deterministic non-zero vector from the text so
// tests never touch a real embedding service. Empty text errors, like a
// real service would.
func stubEmbedding(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	var sum float32
	for _, r := range text {
		sum += float32(r%7) + 1
	}
	return []float32{sum, 2, 3}, nil
}

func newTestManager(t *testing.T) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager("", "test_collection", true, "", stubEmbedding)
	require.NoError(t, err)
	return m
}

func chunkEmbedding(owner, doc string, idx int) models.ChunkEmbedding {
	return models.ChunkEmbedding{
		Chunk: models.Chunk{
			ID:         fmt.Sprintf("%s-%d", doc, idx),
			DocumentID: doc,
			OwnerID:    owner,
			Content:    fmt.Sprintf("chunk %d of %s about mountains", idx, doc),
			ChunkIndex: idx,
		},
		Embedding: []float32{float32(idx) + 1, 2, 3},
	}
}

func TestUpsertEmptyBatch(t *testing.T) {
	m := newTestManager(t)
	report, err := m.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.BatchesTotal)
}

func TestUpsertRequiresOwner(t *testing.T) {
	m := newTestManager(t)
	ce := chunkEmbedding("", "doc1", 0)
	_, err := m.Upsert(context.Background(), []models.ChunkEmbedding{ce})
	var inputErr *models.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "owner_id", inputErr.Field)
}

func TestUpsertAndStats(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	report, err := m.Upsert(ctx, []models.ChunkEmbedding{
		chunkEmbedding("owner-a", "doc1", 0),
		chunkEmbedding("owner-a", "doc1", 1),
	})
	require.NoError(t, err)
	assert.True(t, report.AllOK())
	assert.Equal(t, 2, report.DocsWritten)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
}

func TestUpsertSplitsIntoBatches(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	batch := make([]models.ChunkEmbedding, 0, 101)
	for i := 0; i < 101; i++ {
		batch = append(batch, chunkEmbedding("owner-a", "doc1", i))
	}

	report, err := m.Upsert(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, report.BatchesTotal)
	assert.Equal(t, 2, report.BatchesOK)
	assert.Equal(t, 101, report.DocsWritten)
	assert.True(t, report.AllOK())

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 101, stats.Documents)
}

func TestUpsertReportsFailedBatchWithoutRollback(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	batch := make([]models.ChunkEmbedding, 0, 101)
	for i := 0; i < 100; i++ {
		batch = append(batch, chunkEmbedding("owner-a", "doc1", i))
	}
	// no ID, no content, no embedding: the store rejects it and the
	// second batch fails
	batch = append(batch, models.ChunkEmbedding{
		Chunk: models.Chunk{OwnerID: "owner-a", DocumentID: "doc1", ChunkIndex: 100},
	})

	report, err := m.Upsert(ctx, batch)
	require.NoError(t, err, "a failed batch is reported, not returned as an error")
	assert.Equal(t, 2, report.BatchesTotal)
	assert.Equal(t, 1, report.BatchesOK)
	assert.Equal(t, 100, report.DocsWritten)
	assert.False(t, report.AllOK())

	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Failed[0].BatchIndex)
	assert.Equal(t, 1, report.Failed[0].Size)
	var svcErr *models.ExternalServiceError
	require.ErrorAs(t, report.Failed[0].Err, &svcErr)

	// the committed first batch stays queryable
	chunks, err := m.Query(ctx, "owner-a", "mountains", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestQueryRequiresOwner(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Query(context.Background(), "", "mountains", 5)
	var inputErr *models.InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestQueryEmptyCollection(t *testing.T) {
	m := newTestManager(t)
	chunks, err := m.Query(context.Background(), "owner-a", "mountains", 5)
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestQueryClampsTopKToCollectionSize(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, []models.ChunkEmbedding{chunkEmbedding("owner-a", "doc1", 0)})
	require.NoError(t, err)

	// asking for more results than the store holds must not error
	chunks, err := m.Query(ctx, "owner-a", "mountains", 50)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestQueryScopedToOwner(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, []models.ChunkEmbedding{
		chunkEmbedding("owner-a", "doc1", 0),
		chunkEmbedding("owner-a", "doc1", 1),
		chunkEmbedding("owner-b", "doc2", 0),
		chunkEmbedding("owner-b", "doc2", 1),
	})
	require.NoError(t, err)

	chunks, err := m.Query(ctx, "owner-a", "mountains", 2)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, sc := range chunks {
		assert.Equal(t, "owner-a", sc.Chunk.OwnerID)
		assert.Equal(t, "doc1", sc.Chunk.DocumentID)
	}
}

func TestQueryRoundTripsChunkFields(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	original := chunkEmbedding("owner-a", "doc1", 3)
	_, err := m.Upsert(ctx, []models.ChunkEmbedding{original})
	require.NoError(t, err)

	chunks, err := m.Query(ctx, "owner-a", "mountains", 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, original.Chunk, chunks[0].Chunk)
}

func TestDeleteDocument(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, []models.ChunkEmbedding{
		chunkEmbedding("owner-a", "doc1", 0),
		chunkEmbedding("owner-a", "doc2", 0),
	})
	require.NoError(t, err)

	require.NoError(t, m.DeleteDocument(ctx, "owner-a", "doc1"))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)

	chunks, err := m.Query(ctx, "owner-a", "mountains", 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc2", chunks[0].Chunk.DocumentID)
}

func TestDeleteDocumentRequiresOwner(t *testing.T) {
	m := newTestManager(t)
	err := m.DeleteDocument(context.Background(), "", "doc1")
	var inputErr *models.InputError
	require.ErrorAs(t, err, &inputErr)
}
