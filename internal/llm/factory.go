package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/jarvis/internal/config"
)

// New returns the client for cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg, nil, log)
	case "gemini":
		return NewGeminiClient(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
