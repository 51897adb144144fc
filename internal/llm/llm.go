// Package llm defines the completion contract used by Jarvis and its
// OpenAI-compatible and Gemini implementations.
package llm

import (
	"context"
	"errors"
	"io"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("empty completion response")

// Message is one entry of a chat completion request.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest carries the messages and optional sampling overrides.
// A nil Temperature or a zero MaxTokens falls back to the client defaults.
type CompletionRequest struct {
	Messages    []Message
	Temperature *float32
	MaxTokens   int
}

// Client produces chat completions.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Model() string
}

// Speaker synthesizes speech. Providers that cannot do it don't implement it.
type Speaker interface {
	Speak(ctx context.Context, text, voice string) ([]byte, error)
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Imager generates an image from a prompt and returns the encoded bytes.
type Imager interface {
	Image(ctx context.Context, prompt string) ([]byte, error)
}

// Float32 returns a pointer to v, for CompletionRequest.Temperature.
func Float32(v float32) *float32 {
	return &v
}
