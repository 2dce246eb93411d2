package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"study-guide/internal/config"
	"study-guide/internal/contextbuilder"
	"study-guide/internal/models"
)

// fakeModel returns a canned completion and records the prompts it saw.
type fakeModel struct {
	output  string
	err     error
	prompts []string
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, tc.Text)
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.output}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.prompts = append(m.prompts, prompt)
	return m.output, nil
}

type wordTokenizer struct {
	ids map[string]int
	rev map[int]string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: make(map[string]int), rev: make(map[int]string)}
}

func (w *wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	out := make([]int, len(words))
	for i, word := range words {
		id, ok := w.ids[word]
		if !ok {
			id = len(w.ids) + 1
			w.ids[word] = id
			w.rev[id] = word
		}
		out[i] = id
	}
	return out
}

func (w *wordTokenizer) Decode(ids []int) string {
	words := make([]string, len(ids))
	for i, id := range ids {
		words[i] = w.rev[id]
	}
	return strings.Join(words, " ")
}

const sourceContext = "The Himalayas were formed 50 million years ago. " +
	"Mount Everest is the tallest peak. The range spans five countries."

func newOrchestrator(model llms.Model) *Orchestrator {
	cfg := config.Default().Generation
	return New(model, contextbuilder.New(newWordTokenizer()), cfg)
}

func longOutput() string {
	return "The Himalayas formed through the collision of tectonic plates long ago. " +
		"The range keeps rising a few millimeters every single year even now. " +
		"Mount Everest is the tallest peak on the planet by a clear margin. " +
		"Glaciers across the region feed several of the largest rivers in Asia. " +
		"Five countries share the range along its full length from end to end. " +
		"Climbers from around the world attempt the highest summits each spring. " +
		"The weather changes quickly and storms arrive with very little warning."
}

func TestGenerateEmptyTopic(t *testing.T) {
	o := newOrchestrator(&fakeModel{output: "text"})
	_, err := o.Generate(context.Background(), "  ", sourceContext)
	var inputErr *models.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "topic", inputErr.Field)
}

func TestGenerateEmptyContext(t *testing.T) {
	o := newOrchestrator(&fakeModel{output: "text"})
	_, err := o.Generate(context.Background(), "Himalayas", "")
	var inputErr *models.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "context", inputErr.Field)
}

func TestGenerateModelFailure(t *testing.T) {
	o := newOrchestrator(&fakeModel{err: errors.New("backend down")})
	_, err := o.Generate(context.Background(), "Himalayas", sourceContext)
	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
}

func TestGenerateEmptyModelOutput(t *testing.T) {
	o := newOrchestrator(&fakeModel{output: "   "})
	_, err := o.Generate(context.Background(), "Himalayas", sourceContext)
	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
}

func TestGeneratePromptGroundsOnContext(t *testing.T) {
	model := &fakeModel{output: longOutput()}
	o := newOrchestrator(model)

	_, err := o.Generate(context.Background(), "Himalayas", sourceContext)
	require.NoError(t, err)
	require.NotEmpty(t, model.prompts)

	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Himalayas")
	assert.Contains(t, prompt, "50 million years ago")
}

func TestGenerateHealthyGuide(t *testing.T) {
	o := newOrchestrator(&fakeModel{output: longOutput()})

	guide, err := o.Generate(context.Background(), "Himalayas", sourceContext)
	require.NoError(t, err)
	assert.Equal(t, "Himalayas", guide.Topic)
	assert.False(t, guide.Degraded)
	assert.NotContains(t, guide.Content, models.DisclaimerNote)
	assert.GreaterOrEqual(t, len(strings.Fields(guide.Content)), 1)
}

func TestGenerateShortGuideGetsDisclaimer(t *testing.T) {
	o := newOrchestrator(&fakeModel{output: "The Himalayas are very tall mountains."})

	guide, err := o.Generate(context.Background(), "Himalayas", sourceContext)
	require.NoError(t, err)
	assert.True(t, guide.Degraded)
	assert.Contains(t, guide.Content, models.DisclaimerNote)
}

func TestGenerateCleansModelOutput(t *testing.T) {
	repeated := longOutput() + "the himalayas are vast. the himalayas are vast."
	o := newOrchestrator(&fakeModel{output: repeated})

	guide, err := o.Generate(context.Background(), "Himalayas", sourceContext)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.ToLower(guide.Content), "himalayas are vast"))
}
