package prompt

import "unicode"

// Language is a detected language code.
type Language string

// Detectable languages.
const (
	LanguageRussian      Language = "ru"
	LanguageEnglish      Language = "en"
	LanguageUndetermined Language = "und"
)

// cyrillicShare is the fraction of letters that makes a text Russian.
const cyrillicShare = 0.3

// LanguageDetector guesses the language of a text.
type LanguageDetector interface {
	Detect(text string) Language
}

// ScriptDetector decides by the share of Cyrillic letters.
type ScriptDetector struct{}

// Detect returns ru when at least 30% of letters are Cyrillic, en when there
// are other letters and und when there are none.
func (ScriptDetector) Detect(text string) Language {
	var letters, cyrillic int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Cyrillic, r) {
			cyrillic++
		}
	}

	switch {
	case letters == 0:
		return LanguageUndetermined
	case float64(cyrillic) >= cyrillicShare*float64(letters):
		return LanguageRussian
	default:
		return LanguageEnglish
	}
}
