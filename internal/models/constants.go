package models

const (
	// BlankMarker replaces the answer span in quiz questions.
	BlankMarker = "__________"

	// DisclaimerNote is appended when a generated guide is implausibly short.
	DisclaimerNote = "\n\nNote: The provided context may not contain enough information for a comprehensive summary."
)

var (
	StudyGuidePromptTemplate = `Write a clear and concise summary about the topic '%s' using ONLY the information provided in the context below.
Follow these instructions strictly:
1. Use ONLY the information from the provided context - do not add external knowledge.
2. Focus on the main topic and its key aspects mentioned in the context.
3. Write a single, well-structured paragraph that flows naturally.
4. Maintain the original meaning and emphasis from the context.
5. If the context doesn't contain enough information about a specific aspect, do not make assumptions.

Context:
%s
`
)
