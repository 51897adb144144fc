package prompt

import (
	"fmt"
	"slices"
	"strings"
)

// Personas.
const (
	PersonaAssistant = "assistant"
	PersonaProfessor = "professor"
	PersonaSarcastic = "sarcastic"
)

// Personas lists the accepted persona names.
var Personas = []string{PersonaAssistant, PersonaProfessor, PersonaSarcastic}

var personaStyles = map[string]string{
	PersonaAssistant: "Answer briefly and to the point.",
	PersonaProfessor: "Explain in detail, step by step, with examples and clarifications.",
	PersonaSarcastic: "Answer with light irony, but stay helpful and friendly.",
}

var moodHints = map[Mood]string{
	MoodPositive: "The user seems in a good mood; keep the tone warm.",
	MoodStressed: "The user seems stressed; be calm and supportive.",
	MoodSad:      "The user seems sad; be gentle and empathetic.",
	MoodAngry:    "The user seems angry; stay calm and constructive.",
}

// ValidPersona reports whether name is a known persona.
func ValidPersona(name string) bool {
	return slices.Contains(Personas, name)
}

// SystemPrompt renders the persona instruction for lang, with a tone hint
// when mood is not neutral. Unknown personas get the assistant style.
func SystemPrompt(persona, lang string, mood Mood) string {
	style, ok := personaStyles[persona]
	if !ok {
		style = personaStyles[PersonaAssistant]
	}

	var sb strings.Builder
	sb.WriteString(style)
	fmt.Fprintf(&sb, " Reply language: %s. If the user explicitly asks for another language, follow that request.", lang)
	sb.WriteString(" If a URL or a question about current events is given, you may use the web content provided below.")

	if hint, ok := moodHints[mood]; ok {
		sb.WriteString("\n")
		sb.WriteString(hint)
	}

	return sb.String()
}

// TranslateInstruction is the system prompt for one-shot translation.
func TranslateInstruction(toLang string) string {
	return fmt.Sprintf("Translate the text into %s. Preserve the meaning and tone. Reply with the translation only.", toLang)
}

// SummarizeInstruction is the system prompt for one-shot summaries.
func SummarizeInstruction(lang string) string {
	return fmt.Sprintf("Summarize the text briefly in %s.", lang)
}
