package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"study-guide/internal/chromemdb"
	"study-guide/internal/config"
	"study-guide/internal/contextbuilder"
	"study-guide/internal/db"
	"study-guide/internal/embedding"
	"study-guide/internal/generator"
	"study-guide/internal/helper"
	"study-guide/internal/llmservice"
	"study-guide/internal/parser"
	"study-guide/internal/quiz"
	"study-guide/internal/rag"
	"study-guide/internal/ranker"
	"study-guide/internal/tokenizer"
)

const (
	configFilePath = "./configs/config.yaml"
	defaultDBPath  = "./chromemdb"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	filePath := flag.String("file", "", "Path to a document file to ingest")
	owner := flag.String("owner", "", "Owner ID scoping all index operations")
	topic := flag.String("topic", "", "Topic to generate a study guide for")
	quizCount := flag.Int("quiz", 0, "Number of quiz questions to generate for the topic")
	deleteDoc := flag.String("delete", "", "Document ID to remove from the index")
	stats := flag.Bool("stats", false, "Print index statistics")
	dryRun := flag.Bool("dry-run", false, "Parse and segment only, do not write to the index")
	flag.Parse()

	if *owner == "" {
		log.Fatal().Msg("Please provide an owner ID using the -owner flag")
	}

	ctx := context.Background()

	switch {
	case *filePath != "":
		ingestFile(ctx, *owner, *filePath, *dryRun)
	case *deleteDoc != "":
		deleteDocument(ctx, *owner, *deleteDoc)
	case *quizCount > 0 && *topic != "":
		generateQuiz(ctx, *owner, *topic, *quizCount)
	case *topic != "":
		generateGuide(ctx, *owner, *topic)
	case *stats:
		printStats(ctx, *owner)
	default:
		log.Fatal().Msg("Please provide -file to ingest, -topic to generate a guide, -topic with -quiz for a quiz, -delete to remove a document, or -stats")
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*rag.RAG, error) {
	tok, err := tokenizer.NewTiktoken(cfg.RAG.Tokenizer)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}

	index, err := newIndex(ctx, cfg, embedder)
	if err != nil {
		return nil, err
	}

	model, err := llmservice.NewModel(&cfg.LLM)
	if err != nil {
		return nil, err
	}

	seed := int64(cfg.Generation.Seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rk := ranker.New(cfg.Ranking, tok, nil)
	orch := generator.New(model, contextbuilder.New(tok), cfg.Generation)
	quizGen := quiz.New(rand.New(rand.NewSource(seed)), cfg.Quiz.NumDistractor)

	return rag.NewRAG(index, embedder, rk, orch, quizGen, cfg), nil
}

// newIndex picks the index backend: Postgres/pgvector when a DSN is
// configured, the local chromem store otherwise.
func newIndex(ctx context.Context, cfg *config.Config, embedder *embeddings.EmbedderImpl) (rag.Index, error) {
	if cfg.Database.DSN != "" {
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		store := db.NewStore(sqldb, cfg.Database.Debug, embedder.EmbedQuery)
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}

	dbPath := cfg.RAG.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	if err := helper.CreateFolder(dbPath); err != nil {
		return nil, err
	}
	return chromemdb.NewVectorDBManager(dbPath, cfg.RAG.CollectionName, false, cfg.RAG.EncryptionKey, embedding.ChromemFunc(embedder))
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Warn().Err(err).Msg("Error loading config, using defaults")
		return config.Default()
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")
	return cfg
}

func ingestFile(ctx context.Context, owner, filePath string, dryRun bool) {
	cfg := loadConfig()

	text, err := parser.ExtractText(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error extracting text from document")
	}
	log.Info().Int("length", len(text)).Msg("Extracted document text")

	if dryRun {
		return
	}

	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building pipeline")
	}

	docID, err := helper.GenerateUUID()
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating document ID")
	}

	report, err := pipeline.Ingest(ctx, owner, docID, text)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}
	if report.Chunks == 0 {
		log.Warn().Msg("Document produced no indexable content")
		return
	}
	if !report.Upsert.AllOK() {
		log.Warn().Int("failed_batches", len(report.Upsert.Failed)).Msg("Some batches failed to index")
	}
	log.Info().Str("document", report.DocumentID).Int("chunks", report.Chunks).Int("written", report.Upsert.DocsWritten).Msg("Ingested document")
}

func generateGuide(ctx context.Context, owner, topic string) {
	cfg := loadConfig()
	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building pipeline")
	}

	guide, err := pipeline.StudyGuide(ctx, owner, topic)
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating study guide")
	}
	if guide == nil {
		log.Warn().Str("topic", topic).Msg("No relevant content found for topic")
		return
	}

	log.Info().Msg("Topic: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", guide.Topic)

	log.Info().Msg("Study guide: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", guide.Content)
}

func generateQuiz(ctx context.Context, owner, topic string, numQuestions int) {
	cfg := loadConfig()
	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building pipeline")
	}

	items, err := pipeline.Quiz(ctx, owner, topic, numQuestions)
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating quiz")
	}
	if len(items) == 0 {
		log.Warn().Str("topic", topic).Msg("Not enough content to build a quiz")
		return
	}

	for i, item := range items {
		fmt.Printf("Question %d: %s\n", i+1, item.Question)
		for j, option := range item.Options {
			fmt.Printf("  %d. %s\n", j+1, option)
		}
		fmt.Printf("Correct answer: %s\n\n", item.CorrectAnswer)
	}
}

func deleteDocument(ctx context.Context, owner, documentID string) {
	cfg := loadConfig()
	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building pipeline")
	}
	if err := pipeline.DeleteDocument(ctx, owner, documentID); err != nil {
		log.Fatal().Err(err).Msg("Error deleting document")
	}
	log.Info().Str("document", documentID).Msg("Deleted document")
}

func printStats(ctx context.Context, owner string) {
	cfg := loadConfig()
	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building pipeline")
	}
	stats, err := pipeline.Stats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading index stats")
	}
	helper.PrettyPrint(stats)
}
