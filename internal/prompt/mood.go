package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/edgard/jarvis/internal/llm"
)

// Mood is the user's detected emotional tone.
type Mood string

// Moods.
const (
	MoodNeutral  Mood = "neutral"
	MoodPositive Mood = "positive"
	MoodStressed Mood = "stressed"
	MoodSad      Mood = "sad"
	MoodAngry    Mood = "angry"
)

// moodPriority breaks keyword ties.
var moodPriority = []Mood{MoodStressed, MoodAngry, MoodSad, MoodPositive}

// DefaultMoodKeywords are substrings matched case-insensitively. Russian
// entries are stems so inflected forms match.
var DefaultMoodKeywords = map[Mood][]string{
	MoodStressed: {"stress", "anxious", "overwhelm", "deadline", "panic", "exhausted", "стресс", "тревог", "устал", "дедлайн", "паник", "не успеваю", "завал"},
	MoodAngry:    {"angry", "furious", "annoyed", "i hate", "wtf", "злюсь", "бесит", "раздража", "ненавиж", "достал"},
	MoodSad:      {"sad", "depressed", "lonely", "upset", "miss you", "груст", "печал", "тоскл", "одинок", "плохо мне"},
	MoodPositive: {"happy", "great", "awesome", "thanks", "love it", "glad", "радост", "отлично", "супер", "спасибо", "класс"},
}

// ParseMood maps a name to a Mood. Unknown names are rejected.
func ParseMood(s string) (Mood, bool) {
	switch m := Mood(strings.ToLower(strings.TrimSpace(s))); m {
	case MoodNeutral, MoodPositive, MoodStressed, MoodSad, MoodAngry:
		return m, true
	default:
		return MoodNeutral, false
	}
}

// MoodClassifier detects the mood of a message.
type MoodClassifier interface {
	Classify(ctx context.Context, text string) Mood
}

// NeutralClassifier always answers neutral.
type NeutralClassifier struct{}

// Classify implements MoodClassifier.
func (NeutralClassifier) Classify(context.Context, string) Mood {
	return MoodNeutral
}

// KeywordClassifier counts keyword hits per mood.
type KeywordClassifier struct {
	keywords map[Mood][]string
}

// NewKeywordClassifier merges keywords over DefaultMoodKeywords. A configured
// mood replaces its default list.
func NewKeywordClassifier(keywords map[string][]string) (*KeywordClassifier, error) {
	merged := make(map[Mood][]string, len(DefaultMoodKeywords))
	for m, words := range DefaultMoodKeywords {
		merged[m] = words
	}

	for name, words := range keywords {
		m, ok := ParseMood(name)
		if !ok || m == MoodNeutral {
			return nil, fmt.Errorf("unknown mood %q in keyword lists", name)
		}
		lowered := make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				lowered = append(lowered, w)
			}
		}
		merged[m] = lowered
	}

	return &KeywordClassifier{keywords: merged}, nil
}

// Classify returns the mood with the most hits. Ties go to the earlier mood
// in stressed, angry, sad, positive order.
func (k *KeywordClassifier) Classify(_ context.Context, text string) Mood {
	lower := strings.ToLower(text)

	best, bestHits := MoodNeutral, 0
	for _, m := range moodPriority {
		hits := 0
		for _, w := range k.keywords[m] {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = m, hits
		}
	}
	return best
}

const moodInstruction = "Determine the user's mood: neutral, positive, stressed, sad, angry. Reply with one word."

// LLMClassifier asks the completion client for a one-word mood.
type LLMClassifier struct {
	client llm.Client
	log    *slog.Logger
}

// NewLLMClassifier creates a classifier backed by client.
func NewLLMClassifier(client llm.Client, log *slog.Logger) *LLMClassifier {
	return &LLMClassifier{client: client, log: log.With("component", "mood_classifier")}
}

// Classify falls back to neutral on errors and unknown answers.
func (c *LLMClassifier) Classify(ctx context.Context, text string) Mood {
	answer, err := c.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: moodInstruction},
			{Role: llm.RoleUser, Content: text},
		},
		Temperature: llm.Float32(0.2),
		MaxTokens:   5,
	})
	if err != nil {
		c.log.DebugContext(ctx, "Mood classification failed", "error", err)
		return MoodNeutral
	}

	fields := strings.Fields(answer)
	if len(fields) == 0 {
		return MoodNeutral
	}
	word := strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	mood, _ := ParseMood(word)
	return mood
}

// NewMoodClassifier builds the classifier named by kind: keyword, llm or off.
func NewMoodClassifier(kind string, keywords map[string][]string, client llm.Client, log *slog.Logger) (MoodClassifier, error) {
	switch kind {
	case "", "keyword":
		k, err := NewKeywordClassifier(keywords)
		if err != nil {
			return nil, err
		}
		return k, nil
	case "llm":
		if client == nil {
			return nil, fmt.Errorf("llm mood classifier requires a completion client")
		}
		return NewLLMClassifier(client, log), nil
	case "off":
		return NeutralClassifier{}, nil
	default:
		return nil, fmt.Errorf("unknown mood classifier %q", kind)
	}
}
