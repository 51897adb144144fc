package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/edgard/jarvis/internal/config"
	"github.com/edgard/jarvis/internal/conversation"
	"github.com/edgard/jarvis/internal/database"
	"github.com/edgard/jarvis/internal/llm"
	"github.com/edgard/jarvis/internal/observability"
)

// Conversation is the part of *conversation.Service the handlers use.
type Conversation interface {
	Reply(ctx context.Context, req conversation.Request) (conversation.Response, error)
	Reset(ctx context.Context, userID int64) error
	Settings(ctx context.Context, userID int64) (database.User, error)
	UpdateSettings(ctx context.Context, userID int64, settings database.UserSettings) error
	Translate(ctx context.Context, text, toLang string) (string, error)
	Summarize(ctx context.Context, text, lang string) (string, error)
}

// Lookup answers /weather and /rate.
type Lookup interface {
	Weather(ctx context.Context, city string) (string, error)
	Currency(ctx context.Context, base, symbols string) (string, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
//
// Client is probed for the optional llm.Speaker, llm.Transcriber and
// llm.Imager capabilities. Metrics and HTTPClient may be nil.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Conversation Conversation
	Client       llm.Client
	Lookup       Lookup
	Metrics      *observability.Metrics
	HTTPClient   *http.Client
}
