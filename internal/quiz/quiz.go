package quiz

import (
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"

	"study-guide/internal/chunker"
	"study-guide/internal/models"
)

const minDistractors = 3

// Generator synthesizes fill-in-the-blank quiz items from source text.
// The randomness source is injected so callers can seed it for
// reproducible quizzes.
type Generator struct {
	rng            *rand.Rand
	numDistractors int
}

func New(rng *rand.Rand, numDistractors int) *Generator {
	if numDistractors < minDistractors {
		numDistractors = minDistractors
	}
	return &Generator{rng: rng, numDistractors: numDistractors}
}

// Generate builds up to numQuestions quiz items. Best-effort: it returns
// fewer items when the text is too short or too repetitive, and stops
// once every sentence has been tried.
func (g *Generator) Generate(text string, numQuestions int) []models.QuizItem {
	sentences := chunker.SplitSentences(text)
	if len(sentences) == 0 || numQuestions <= 0 {
		return nil
	}

	importantWords := make([][]string, len(sentences))
	for i, sentence := range sentences {
		importantWords[i] = findImportantWords(sentence)
	}

	var quiz []models.QuizItem
	used := make(map[int]struct{}, len(sentences))

	for len(quiz) < numQuestions && len(used) < len(sentences) {
		idx := g.pickUnused(len(sentences), used)
		used[idx] = struct{}{}

		words := importantWords[idx]
		if len(words) == 0 {
			continue
		}
		answer := words[g.rng.Intn(len(words))]

		question, ok := blankOut(sentences[idx], answer)
		if !ok {
			// tokenization mismatch, the answer span is not verbatim
			// in the sentence
			continue
		}

		distractors := g.sampleDistractors(importantWords, answer)
		if len(distractors) < minDistractors {
			log.Debug().Str("answer", answer).Msg("not enough distractors, skipping question")
			continue
		}

		options := append(distractors, answer)
		g.rng.Shuffle(len(options), func(i, j int) {
			options[i], options[j] = options[j], options[i]
		})

		quiz = append(quiz, models.QuizItem{
			Question:      question,
			Options:       options,
			CorrectAnswer: answer,
		})
	}

	return quiz
}

func (g *Generator) pickUnused(n int, used map[int]struct{}) int {
	for {
		idx := g.rng.Intn(n)
		if _, ok := used[idx]; !ok {
			return idx
		}
	}
}

// findImportantWords picks quiz-answer candidates: capitalized tokens,
// tokens containing a digit and tokens longer than six characters.
// Tokens of three characters or fewer never qualify.
func findImportantWords(sentence string) []string {
	var important []string
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(sentence) {
		if len(word) <= 3 {
			continue
		}
		if !isCapitalized(word) && !hasDigit(word) && len(word) <= 6 {
			continue
		}
		if _, dup := seen[strings.ToLower(word)]; dup {
			continue
		}
		seen[strings.ToLower(word)] = struct{}{}
		important = append(important, word)
	}
	return important
}

// blankOut replaces the exact answer word sequence in the sentence with
// the blank marker, collapsing adjacent markers into one. It reports
// false when the answer cannot be located verbatim.
func blankOut(sentence, answer string) (string, bool) {
	words := strings.Fields(sentence)
	answerWords := strings.Fields(answer)
	if len(answerWords) == 0 {
		return "", false
	}

	start := -1
	for i := 0; i+len(answerWords) <= len(words); i++ {
		if strings.EqualFold(strings.Join(words[i:i+len(answerWords)], " "), answer) {
			start = i
			break
		}
	}
	if start == -1 {
		return "", false
	}

	for i := range answerWords {
		words[start+i] = models.BlankMarker
	}
	question := strings.Join(words, " ")
	double := models.BlankMarker + " " + models.BlankMarker
	for strings.Contains(question, double) {
		question = strings.ReplaceAll(question, double, models.BlankMarker)
	}
	return question, true
}

// sampleDistractors draws wrong options from the important-word pool of
// every sentence, without replacement and excluding the correct answer
// case-insensitively.
func (g *Generator) sampleDistractors(importantWords [][]string, answer string) []string {
	var pool []string
	seen := map[string]struct{}{strings.ToLower(answer): {}}
	for _, words := range importantWords {
		for _, w := range words {
			key := strings.ToLower(w)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pool = append(pool, w)
		}
	}

	if len(pool) <= g.numDistractors {
		return pool
	}
	perm := g.rng.Perm(len(pool))
	distractors := make([]string, 0, g.numDistractors)
	for _, i := range perm[:g.numDistractors] {
		distractors = append(distractors, pool[i])
	}
	return distractors
}

func isCapitalized(word string) bool {
	r := rune(word[0])
	return r >= 'A' && r <= 'Z'
}

func hasDigit(word string) bool {
	for _, r := range word {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
