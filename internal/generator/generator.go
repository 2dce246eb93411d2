package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"study-guide/internal/config"
	"study-guide/internal/contextbuilder"
	"study-guide/internal/llmservice"
	"study-guide/internal/models"
)

// Orchestrator drives the generation model: it cleans the retrieved
// context, bounds it to the token budget, builds a grounded prompt and
// post-processes the raw model output.
type Orchestrator struct {
	model   llms.Model
	builder *contextbuilder.Builder
	cfg     config.GenerationConfig
}

func New(model llms.Model, builder *contextbuilder.Builder, cfg config.GenerationConfig) *Orchestrator {
	return &Orchestrator{model: model, builder: builder, cfg: cfg}
}

// Generate produces a study guide for topic grounded in contextText.
// The model call errors surface as GenerationError; an implausibly short
// result gets a disclaimer appended instead of failing.
func (o *Orchestrator) Generate(ctx context.Context, topic, contextText string) (models.StudyGuide, error) {
	if strings.TrimSpace(topic) == "" {
		return models.StudyGuide{}, &models.InputError{Field: "topic", Reason: "must not be empty"}
	}
	if strings.TrimSpace(contextText) == "" {
		return models.StudyGuide{}, &models.InputError{Field: "context", Reason: "must not be empty"}
	}

	cleaned := CleanAndDeduplicate(contextText)
	bounded := o.builder.Assemble(cleaned, topic, o.cfg.MaxContextTokens)
	log.Debug().Int("context_len", len(bounded)).Str("topic", topic).Msg("assembled generation context")

	prompt := fmt.Sprintf(models.StudyGuidePromptTemplate, topic, bounded)

	raw, err := llmservice.GenerateText(ctx, o.model, prompt, llmservice.DecodingParams{
		MaxLength:         o.cfg.MaxLength,
		MinLength:         o.cfg.MinLength,
		NumBeams:          o.cfg.NumBeams,
		Sampling:          o.cfg.Sampling,
		RepetitionPenalty: o.cfg.RepetitionPenalty,
		NoRepeatNgramSize: o.cfg.NoRepeatNgramSize,
		Seed:              o.cfg.Seed,
	})
	if err != nil {
		return models.StudyGuide{}, &models.GenerationError{Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return models.StudyGuide{}, &models.GenerationError{Err: fmt.Errorf("model returned empty output")}
	}

	guide := FormatForDisplay(CleanAndDeduplicate(raw))

	degraded := false
	if len(strings.Fields(guide)) < o.cfg.MinGuideWords {
		guide += models.DisclaimerNote
		degraded = true
		log.Debug().Str("topic", topic).Msg("generated guide is short, appending disclaimer")
	}

	return models.StudyGuide{Topic: topic, Content: guide, Degraded: degraded}, nil
}
