package prompt

import (
	"fmt"
	"strings"

	"studymaster/internal/ingest"
)

// RefusalSentence is what the tutor is told to answer when the provided
// context does not contain the answer. Instruction-level only: the engine
// does not post-validate model output against it.
const RefusalSentence = "I can't find that in the provided material."

var styleDirectives = map[ResponseStyle]string{
	StyleTerse:      "Be telegraphic. Use bullet points. Maximum substance, minimum text.",
	StyleBalanced:   "Give a clear, balanced answer.",
	StyleExhaustive: "Explain everything in full detail. Include context, examples and complete definitions.",
}

// Each study mode maps to its own role template. Dispatch goes through this
// table rather than string comparisons so an unmapped mode fails loudly.
var modeTemplates = map[StudyMode]func(style ResponseStyle, numItems int) string{
	ModeChat: func(style ResponseStyle, _ int) string {
		return "You are an excellent personal tutor. " + styleDirectives[style]
	},
	ModeQuiz: func(_ ResponseStyle, numItems int) string {
		return fmt.Sprintf("You are an exam professor. Immediately generate exactly %d hard questions, "+
			"numbered 1 through %d. Do NOT reveal any solutions. Wait for the student's answers before grading.",
			numItems, numItems)
	},
	ModeFlashcards: func(style ResponseStyle, _ int) string {
		return "Create study flashcards. " + styleDirectives[style] +
			" Format every card on its own line as: TERM -> DEFINITION."
	},
	ModeConceptMap: func(_ ResponseStyle, _ int) string {
		return "Produce a concept map of the material as a single fenced ```mermaid code block " +
			"using graph TD syntax. Output the code block and nothing else: no prose before or after it."
	},
}

// Compose builds the system instruction for one turn. It is a pure function
// of its arguments. When segments are present the answer is constrained to
// that context, with a fixed refusal sentence for anything outside it;
// without segments the tutor answers from general knowledge.
func Compose(mode StudyMode, style ResponseStyle, numItems int, segments []ingest.Segment) (string, error) {
	template, ok := modeTemplates[mode]
	if !ok {
		return "", fmt.Errorf("no template for study mode %v", mode)
	}

	var b strings.Builder
	b.WriteString("ROLE: ")
	b.WriteString(template(style, numItems))
	b.WriteString("\n")

	if len(segments) == 0 {
		b.WriteString("SOURCE: No study material is loaded. Answer from general knowledge.\n")
		return b.String(), nil
	}

	b.WriteString("SOURCE: Answer ONLY from the context below. ")
	fmt.Fprintf(&b, "If the context does not contain the answer, reply exactly: %q\n", RefusalSentence)
	b.WriteString("CONTEXT:\n")
	for _, seg := range segments {
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
