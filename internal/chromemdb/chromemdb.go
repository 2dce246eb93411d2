package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"study-guide/internal/models"
)

const (
	compress = false

	// writes are split into fixed-size batches to respect the store's
	// request-size limits
	upsertBatchSize = 100
)

// metadata keys stored with every chunk
const (
	metaOwnerID    = "owner_id"
	metaDocumentID = "document_id"
	metaChunkIndex = "chunk_index"
)

// VectorDBManager encapsulates the chromem-go database operations behind
// the index port. Every write and query is scoped to an owner so topic
// search never crosses tenant boundaries.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	encryptionKey string
	filePath      string
}

// NewVectorDBManager initializes a vector database manager backed by a
// persistent chromem DB, or an in-memory one when inMemory is set.
// embedFn converts text to vectors for documents upserted without a
// precomputed embedding and for query text.
func NewVectorDBManager(dbPath, collectionName string, inMemory bool, encryptionKey string, embedFn chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	return &VectorDBManager{
		db:            db,
		collection:    collection,
		dbPath:        dbPath,
		encryptionKey: encryptionKey,
		filePath:      dbPath + "/" + collectionName + ".chromem",
	}, nil
}

// Upsert writes chunk embeddings in batches. A failing batch is recorded
// in the report and does not roll back or block sibling batches. Every
// chunk must carry an owner ID.
func (m *VectorDBManager) Upsert(ctx context.Context, embeddings []models.ChunkEmbedding) (models.UpsertReport, error) {
	var report models.UpsertReport
	if len(embeddings) == 0 {
		return report, nil
	}
	for _, ce := range embeddings {
		if ce.Chunk.OwnerID == "" {
			return report, &models.InputError{Field: "owner_id", Reason: "every indexed chunk must carry an owner"}
		}
	}

	docs := make([]chromem.Document, len(embeddings))
	for i, ce := range embeddings {
		docs[i] = chromem.Document{
			ID:      ce.Chunk.ID,
			Content: ce.Chunk.Content,
			Metadata: map[string]string{
				metaOwnerID:    ce.Chunk.OwnerID,
				metaDocumentID: ce.Chunk.DocumentID,
				metaChunkIndex: strconv.Itoa(ce.Chunk.ChunkIndex),
			},
			Embedding: ce.Embedding,
		}
	}

	for start := 0; start < len(docs); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(docs))
		batch := docs[start:end]
		report.BatchesTotal++

		if err := m.collection.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
			log.Error().Err(err).Int("batch", report.BatchesTotal-1).Msg("failed to add batch to vector database")
			report.Failed = append(report.Failed, models.BatchFailure{
				BatchIndex: report.BatchesTotal - 1,
				Size:       len(batch),
				Err:        &models.ExternalServiceError{Service: "vector store", Err: err},
			})
			continue
		}
		report.BatchesOK++
		report.DocsWritten += len(batch)
	}

	log.Debug().Int("written", report.DocsWritten).Int("failed_batches", len(report.Failed)).Msg("upserted documents")
	return report, nil
}

// Query runs a similarity search scoped to the owner. An empty index or
// zero matches is a valid empty result, not an error.
func (m *VectorDBManager) Query(ctx context.Context, ownerID, query string, topK int) ([]models.ScoredChunk, error) {
	if ownerID == "" {
		return nil, &models.InputError{Field: "owner_id", Reason: "queries must be scoped to an owner"}
	}
	if topK <= 0 {
		topK = 5
	}
	// chromem rejects nResults larger than the collection size
	if count := m.collection.Count(); count < topK {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := m.collection.Query(ctx, query, topK, map[string]string{metaOwnerID: ownerID}, nil)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "vector store", Err: err}
	}

	chunks := make([]models.ScoredChunk, 0, len(results))
	for _, res := range results {
		idx, _ := strconv.Atoi(res.Metadata[metaChunkIndex])
		chunks = append(chunks, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:         res.ID,
				DocumentID: res.Metadata[metaDocumentID],
				OwnerID:    res.Metadata[metaOwnerID],
				Content:    res.Content,
				ChunkIndex: idx,
			},
			Score: float64(res.Similarity),
		})
	}
	return chunks, nil
}

// DeleteDocument removes every chunk of the given document for the owner.
func (m *VectorDBManager) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	if ownerID == "" {
		return &models.InputError{Field: "owner_id", Reason: "deletes must be scoped to an owner"}
	}
	where := map[string]string{metaOwnerID: ownerID, metaDocumentID: documentID}
	if err := m.collection.Delete(ctx, where, nil); err != nil {
		return &models.ExternalServiceError{Service: "vector store", Err: err}
	}
	return nil
}

// Stats reports the current size of the index.
func (m *VectorDBManager) Stats(ctx context.Context) (models.IndexStats, error) {
	return models.IndexStats{Documents: m.collection.Count()}, nil
}

// DeleteCollection drops the whole collection.
func (m *VectorDBManager) DeleteCollection() error {
	if err := m.db.DeleteCollection(m.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Export writes an encrypted snapshot of the collection to disk.
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	log.Debug().Str("file", m.filePath).Msg("exporting collection")
	if err := m.db.ExportToFile(m.filePath, compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import restores a previously exported snapshot.
func (m *VectorDBManager) Import(ctx context.Context) error {
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}
