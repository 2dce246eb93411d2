package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-guide/internal/models"
	"study-guide/internal/rag"
)

// the Store must satisfy the same index port as the chromem backend
var _ rag.Index = (*Store)(nil)

func TestNormalizeDSN(t *testing.T) {
	assert.Equal(t, "postgres://localhost:5432/sg?sslmode=disable",
		normalizeDSN("postgres://localhost:5432/sg"))
	assert.Equal(t, "postgres://localhost:5432/sg?sslmode=require",
		normalizeDSN("postgres://localhost:5432/sg?sslmode=require"))
	assert.Equal(t, "postgres://localhost:5432/sg?sslmode=disable",
		normalizeDSN("postgres://localhost:5432/sg?sslmode=disable"))
}

// input validation runs before any database access, so these paths are
// testable without a live Postgres

func TestUpsertEmptyBatch(t *testing.T) {
	s := &Store{}
	report, err := s.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.BatchesTotal)
}

func TestUpsertRequiresOwner(t *testing.T) {
	s := &Store{}
	_, err := s.Upsert(context.Background(), []models.ChunkEmbedding{
		{Chunk: models.Chunk{ID: "doc1-0", Content: "some text"}, Embedding: []float32{1, 2, 3}},
	})
	var inputErr *models.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "owner_id", inputErr.Field)
}

func TestQueryRequiresOwner(t *testing.T) {
	s := &Store{}
	_, err := s.Query(context.Background(), "", "mountains", 5)
	var inputErr *models.InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestDeleteDocumentRequiresOwner(t *testing.T) {
	s := &Store{}
	err := s.DeleteDocument(context.Background(), "", "doc1")
	var inputErr *models.InputError
	require.ErrorAs(t, err, &inputErr)
}
