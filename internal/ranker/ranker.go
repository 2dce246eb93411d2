package ranker

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"study-guide/internal/chunker"
	"study-guide/internal/config"
	"study-guide/internal/models"
	"study-guide/internal/tokenizer"
)

// Model is an optional external pairwise relevance model used in stage 2.
// Higher scores mean more relevant.
type Model interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}

// Ranker orders chunks by relevance to a topic in two stages: a cheap
// heuristic pass over every candidate, then a bounded higher-cost rerank
// of the survivors.
type Ranker struct {
	cfg   config.RankingConfig
	tok   tokenizer.Tokenizer
	model Model
}

// New creates a Ranker. model may be nil; stage 2 then falls back to the
// built-in coverage/coherence/density heuristic.
func New(cfg config.RankingConfig, tok tokenizer.Tokenizer, model Model) *Ranker {
	return &Ranker{cfg: cfg, tok: tok, model: model}
}

// Rank runs both stages and returns the final top-K chunks, highest
// score first. The result is always a subset of the stage-1 top
// candidates, reordered by stage-2 score. Identical inputs yield an
// identical ordering.
func (r *Ranker) Rank(ctx context.Context, chunks []models.Chunk, topic string) ([]models.ScoredChunk, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, &models.InputError{Field: "topic", Reason: "must not be empty"}
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	ranked := r.Stage1(chunks, topic)

	candidates := ranked
	if len(candidates) > r.cfg.RerankCandidates {
		candidates = candidates[:r.cfg.RerankCandidates]
	}

	reranked, err := r.stage2(ctx, candidates, topic)
	if err != nil {
		return nil, err
	}

	if len(reranked) > r.cfg.FinalTopK {
		reranked = reranked[:r.cfg.FinalTopK]
	}
	log.Debug().Int("candidates", len(chunks)).Int("final", len(reranked)).Msg("ranked chunks")
	return reranked, nil
}

// Stage1 scores every chunk with the cheap lexical heuristic and returns
// all of them sorted by score, stable on the original order.
func (r *Ranker) Stage1(chunks []models.Chunk, topic string) []models.ScoredChunk {
	topicLower := strings.ToLower(topic)
	topicWords := wordSet(topicLower)
	topicTokens := tokenizer.TokenSet(r.tok, topic)

	scored := make([]models.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		score := r.relevance(chunk.Content, topicWords, topicTokens)

		if strings.Contains(strings.ToLower(chunk.Content), topicLower) {
			score += r.cfg.TopicMentionBonus
		}

		words := chunk.WordCount()
		if words < r.cfg.MinChunkWords || words > r.cfg.MaxChunkWords {
			score -= r.cfg.LengthPenalty
		}

		scored = append(scored, models.ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// relevance blends word overlap, subword token overlap and topic density,
// each capped so the blend stays in [0, 1].
func (r *Ranker) relevance(content string, topicWords map[string]struct{}, topicTokens map[int]struct{}) float64 {
	contentLower := strings.ToLower(content)
	contentWords := strings.Fields(contentLower)

	common := 0
	seen := make(map[string]struct{}, len(contentWords))
	for _, w := range contentWords {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := topicWords[w]; ok {
			common++
		}
	}

	wordOverlap := 0.0
	if len(topicWords) > 0 {
		wordOverlap = float64(common) / float64(len(topicWords))
	}

	tokenOverlap := tokenizer.OverlapRatio(topicTokens, tokenizer.TokenSet(r.tok, content))

	topicDensity := 0.0
	if len(contentWords) > 0 {
		topicDensity = float64(common) / float64(len(contentWords))
	}

	score := wordOverlap*r.cfg.WordOverlapWeight +
		tokenOverlap*r.cfg.TokenOverlapWeight +
		topicDensity*r.cfg.TopicDensityWeight
	return min(1.0, score)
}

// stage2 rescores the stage-1 survivors, either with the external
// pairwise model or with the heuristic fallback. It never introduces
// chunks that stage 1 excluded.
func (r *Ranker) stage2(ctx context.Context, candidates []models.ScoredChunk, topic string) ([]models.ScoredChunk, error) {
	reranked := make([]models.ScoredChunk, 0, len(candidates))

	for _, candidate := range candidates {
		var score float64
		if r.model != nil {
			s, err := r.model.Score(ctx, topic, candidate.Chunk.Content)
			if err != nil {
				return nil, &models.ExternalServiceError{Service: "reranker", Err: err}
			}
			score = s
		} else {
			score = r.heuristicScore(candidate.Chunk.Content, topic)
		}
		reranked = append(reranked, models.ScoredChunk{Chunk: candidate.Chunk, Score: score})
	}

	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	return reranked, nil
}

func (r *Ranker) heuristicScore(content, topic string) float64 {
	sentences := chunker.SplitSentences(content)

	coverage := r.topicCoverage(sentences, topic)
	coherence := r.sentenceCoherence(sentences)
	density := r.informationDensity(content, wordSet(strings.ToLower(topic)))

	return coverage*r.cfg.CoverageWeight +
		coherence*r.cfg.CoherenceWeight +
		density*r.cfg.DensityWeight
}

// topicCoverage is the fraction of sentences that literally mention the topic.
func (r *Ranker) topicCoverage(sentences []string, topic string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	topicLower := strings.ToLower(topic)
	mentions := 0
	for _, s := range sentences {
		if strings.Contains(strings.ToLower(s), topicLower) {
			mentions++
		}
	}
	return float64(mentions) / float64(len(sentences))
}

// sentenceCoherence is the mean adjacent-sentence token-overlap ratio.
// A single sentence is coherent by convention.
func (r *Ranker) sentenceCoherence(sentences []string) float64 {
	if len(sentences) < 2 {
		return 1.0
	}
	total := 0.0
	comparisons := 0
	for i := 0; i < len(sentences)-1; i++ {
		current := tokenizer.TokenSet(r.tok, sentences[i])
		next := tokenizer.TokenSet(r.tok, sentences[i+1])
		total += tokenizer.OverlapRatio(current, next)
		comparisons++
	}
	return total / float64(comparisons)
}

// informationDensity blends topic-word density with lexical uniqueness.
func (r *Ranker) informationDensity(content string, topicWords map[string]struct{}) float64 {
	words := strings.Fields(strings.ToLower(content))
	if len(words) == 0 {
		return 0
	}
	topicCount := 0
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
		if _, ok := topicWords[w]; ok {
			topicCount++
		}
	}
	topicDensity := float64(topicCount) / float64(len(words))
	uniqueness := float64(len(unique)) / float64(len(words))
	return topicDensity*0.7 + uniqueness*0.3
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
