package db

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"study-guide/internal/config"
	"study-guide/internal/models"
)

// ChunkRecord is a stored chunk with its embedding, one row per chunk.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string    `bun:"id,pk"`
	OwnerID       string    `bun:"owner_id,notnull"`
	DocumentID    string    `bun:"document_id,notnull"`
	ChunkIndex    int       `bun:"chunk_index,notnull"`
	Content       string    `bun:"content,notnull"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(768)"`
}

// EmbedFunc converts query text to a vector with the same model used at
// write time; embedding spaces are not cross-compatible.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Store is a Postgres/pgvector implementation of the index port, an
// alternative to the chromem backend for shared deployments.
type Store struct {
	db      *bun.DB
	embedFn EmbedFunc
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := normalizeDSN(cfg.DSN)
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password))), nil
}

// normalizeDSN disables sslmode for DSNs that carry no query string of
// their own; an explicit query string wins.
func normalizeDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?sslmode=disable"
}

func NewStore(sqldb *sql.DB, debug bool, embedFn EmbedFunc) *Store {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db, embedFn: embedFn}
}

func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Upsert writes chunk embeddings in batches of 100. A failing batch is
// recorded without rolling back committed batches.
func (s *Store) Upsert(ctx context.Context, embeddings []models.ChunkEmbedding) (models.UpsertReport, error) {
	const batchSize = 100

	var report models.UpsertReport
	if len(embeddings) == 0 {
		return report, nil
	}
	for _, ce := range embeddings {
		if ce.Chunk.OwnerID == "" {
			return report, &models.InputError{Field: "owner_id", Reason: "every indexed chunk must carry an owner"}
		}
	}

	records := make([]ChunkRecord, len(embeddings))
	for i, ce := range embeddings {
		records[i] = ChunkRecord{
			ID:         ce.Chunk.ID,
			OwnerID:    ce.Chunk.OwnerID,
			DocumentID: ce.Chunk.DocumentID,
			ChunkIndex: ce.Chunk.ChunkIndex,
			Content:    ce.Chunk.Content,
			Embedding:  ce.Embedding,
		}
	}

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := records[start:end]
		report.BatchesTotal++

		if _, err := s.db.NewInsert().Model(&batch).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
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
	return report, nil
}

// Query runs a cosine-distance search scoped to the owner.
func (s *Store) Query(ctx context.Context, ownerID, query string, topK int) ([]models.ScoredChunk, error) {
	if ownerID == "" {
		return nil, &models.InputError{Field: "owner_id", Reason: "queries must be scoped to an owner"}
	}
	if topK <= 0 {
		topK = 5
	}

	embedding, err := s.embedFn(ctx, query)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "embedding", Err: err}
	}

	var records []ChunkRecord
	err = s.db.NewSelect().
		Model(&records).
		Where("owner_id = ?", ownerID).
		OrderExpr("embedding <-> ?", embedding).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "vector store", Err: err}
	}

	chunks := make([]models.ScoredChunk, 0, len(records))
	for i, rec := range records {
		chunks = append(chunks, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:         rec.ID,
				DocumentID: rec.DocumentID,
				OwnerID:    rec.OwnerID,
				Content:    rec.Content,
				ChunkIndex: rec.ChunkIndex,
			},
			// pgvector returns rows ordered by distance; expose rank order
			Score: 1 - float64(i)/float64(topK),
		})
	}
	return chunks, nil
}

// DeleteDocument removes every chunk of a document for the owner.
func (s *Store) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	if ownerID == "" {
		return &models.InputError{Field: "owner_id", Reason: "deletes must be scoped to an owner"}
	}
	_, err := s.db.NewDelete().
		Model((*ChunkRecord)(nil)).
		Where("owner_id = ?", ownerID).
		Where("document_id = ?", documentID).
		Exec(ctx)
	if err != nil {
		return &models.ExternalServiceError{Service: "vector store", Err: err}
	}
	return nil
}

// Stats reports the number of stored chunks.
func (s *Store) Stats(ctx context.Context) (models.IndexStats, error) {
	count, err := s.db.NewSelect().Model((*ChunkRecord)(nil)).Count(ctx)
	if err != nil {
		return models.IndexStats{}, &models.ExternalServiceError{Service: "vector store", Err: err}
	}
	return models.IndexStats{Documents: count}, nil
}

func (s *Store) Close() error { return s.db.Close() }
