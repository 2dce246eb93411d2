package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	EmbedLLM   LLMConfig        `yaml:"embed_llm"`
	Database   DatabaseConfig   `yaml:"database"`
	RAG        RAGConfig        `yaml:"rag"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Generation GenerationConfig `yaml:"generation"`
	Quiz       QuizConfig       `yaml:"quiz"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type RAGConfig struct {
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	MinChunkLength    int    `yaml:"min_chunk_length"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	TopK              int    `yaml:"top_k"`
	DBPath            string `yaml:"db_path"`
	CollectionName    string `yaml:"collection_name"`
	EncryptionKey     string `yaml:"encryption_key"`
	Tokenizer         string `yaml:"tokenizer"`
}

// RankingConfig holds the two-stage ranking weights. The defaults were
// tuned ad hoc; treat them as starting points for empirical tuning.
type RankingConfig struct {
	WordOverlapWeight  float64 `yaml:"word_overlap_weight"`
	TokenOverlapWeight float64 `yaml:"token_overlap_weight"`
	TopicDensityWeight float64 `yaml:"topic_density_weight"`
	TopicMentionBonus  float64 `yaml:"topic_mention_bonus"`
	LengthPenalty      float64 `yaml:"length_penalty"`
	MinChunkWords      int     `yaml:"min_chunk_words"`
	MaxChunkWords      int     `yaml:"max_chunk_words"`

	CoverageWeight  float64 `yaml:"coverage_weight"`
	CoherenceWeight float64 `yaml:"coherence_weight"`
	DensityWeight   float64 `yaml:"density_weight"`

	RerankCandidates int `yaml:"rerank_candidates"`
	FinalTopK        int `yaml:"final_top_k"`
}

type GenerationConfig struct {
	MaxContextTokens int `yaml:"max_context_tokens"`
	MaxLength        int `yaml:"max_length"`
	MinLength        int `yaml:"min_length"`
	NumBeams         int `yaml:"num_beams"`
	// Sampling switches generation from deterministic decoding to sampled
	// decoding. Deterministic output is reproducible across runs; sampled
	// output is more varied. Default is deterministic.
	Sampling          bool    `yaml:"sampling"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
	NoRepeatNgramSize int     `yaml:"no_repeat_ngram_size"`
	Seed              int     `yaml:"seed"`
	MinGuideWords     int     `yaml:"min_guide_words"`
}

type QuizConfig struct {
	NumQuestions  int `yaml:"num_questions"`
	NumDistractor int `yaml:"num_distractors"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults replaces zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 600
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 100
	}
	if c.RAG.MinChunkLength == 0 {
		c.RAG.MinChunkLength = 100
	}
	if c.RAG.SentencesPerChunk == 0 {
		c.RAG.SentencesPerChunk = 3
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.CollectionName == "" {
		c.RAG.CollectionName = "study_guide"
	}
	if c.RAG.Tokenizer == "" {
		c.RAG.Tokenizer = "cl100k_base"
	}

	if c.Ranking.WordOverlapWeight == 0 {
		c.Ranking.WordOverlapWeight = 0.4
	}
	if c.Ranking.TokenOverlapWeight == 0 {
		c.Ranking.TokenOverlapWeight = 0.3
	}
	if c.Ranking.TopicDensityWeight == 0 {
		c.Ranking.TopicDensityWeight = 0.3
	}
	if c.Ranking.TopicMentionBonus == 0 {
		c.Ranking.TopicMentionBonus = 0.2
	}
	if c.Ranking.LengthPenalty == 0 {
		c.Ranking.LengthPenalty = 0.1
	}
	if c.Ranking.MinChunkWords == 0 {
		c.Ranking.MinChunkWords = 10
	}
	if c.Ranking.MaxChunkWords == 0 {
		c.Ranking.MaxChunkWords = 100
	}
	if c.Ranking.CoverageWeight == 0 {
		c.Ranking.CoverageWeight = 0.4
	}
	if c.Ranking.CoherenceWeight == 0 {
		c.Ranking.CoherenceWeight = 0.3
	}
	if c.Ranking.DensityWeight == 0 {
		c.Ranking.DensityWeight = 0.3
	}
	if c.Ranking.RerankCandidates == 0 {
		c.Ranking.RerankCandidates = 10
	}
	if c.Ranking.FinalTopK == 0 {
		c.Ranking.FinalTopK = 5
	}

	if c.Generation.MaxContextTokens == 0 {
		c.Generation.MaxContextTokens = 800
	}
	if c.Generation.MaxLength == 0 {
		c.Generation.MaxLength = 512
	}
	if c.Generation.MinLength == 0 {
		c.Generation.MinLength = 100
	}
	if c.Generation.NumBeams == 0 {
		c.Generation.NumBeams = 5
	}
	if c.Generation.RepetitionPenalty == 0 {
		c.Generation.RepetitionPenalty = 1.5
	}
	if c.Generation.NoRepeatNgramSize == 0 {
		c.Generation.NoRepeatNgramSize = 3
	}
	if c.Generation.MinGuideWords == 0 {
		c.Generation.MinGuideWords = 50
	}

	if c.Quiz.NumQuestions == 0 {
		c.Quiz.NumQuestions = 5
	}
	if c.Quiz.NumDistractor == 0 {
		c.Quiz.NumDistractor = 3
	}
}

// Default returns a config with all defaults applied, for callers that
// run without a config file.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}
