package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"study-guide/internal/config"
)

// DecodingParams bounds and steers a single generation call.
type DecodingParams struct {
	MaxLength int
	MinLength int
	// NumBeams and NoRepeatNgramSize are honored by backends with beam
	// decoding. OpenAI-style APIs approximate determinism with
	// temperature 0 and a fixed seed instead.
	NumBeams          int
	Sampling          bool
	RepetitionPenalty float64
	NoRepeatNgramSize int
	Seed              int
}

// NewModel builds a langchaingo model client from config.
func NewModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	switch llmConfig.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	default:
		return openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	}
}

// GenerateText calls the model with a single prompt and the given
// decoding parameters.
func GenerateText(ctx context.Context, model llms.Model, prompt string, params DecodingParams) (string, error) {
	log.Debug().Interface("params", params).Int("prompt_len", len(prompt)).Msg("generating content")

	opts := []llms.CallOption{
		llms.WithMaxLength(params.MaxLength),
		llms.WithMinLength(params.MinLength),
	}
	if params.RepetitionPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(params.RepetitionPenalty))
	}
	if params.Sampling {
		opts = append(opts, llms.WithTemperature(0.7))
	} else {
		opts = append(opts, llms.WithTemperature(0), llms.WithSeed(params.Seed))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("llm call failed: %w", err)
	}
	return out, nil
}
