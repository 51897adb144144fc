// Package telegram handles the setup of the go-telegram bot, handler
// registration and the message delivery helpers shared by the handlers.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler describes one handler and how updates are routed to it.
// When Match is set it takes precedence over HandlerType, Pattern and MatchType.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	MatchType   bot.MatchType
	Match       bot.MatchFunc
	// Description is shown in the Telegram command menu when non-empty.
	Description string
}

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info("Telegram bot instance created successfully", "token_prefix", prefix+"...")
	return b, nil
}

// applyMiddleware wraps a handler function with a slice of middleware.
// Middleware are applied in reverse order so the first one in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers command and message handlers with the Telegram bot instance.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registeredHandlers map[string]RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registeredHandlers) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	log.Info("Registering Telegram handlers...", "count", len(registeredHandlers))

	for name, regHandler := range registeredHandlers {
		if regHandler.Handler == nil {
			log.Warn("Skipping registration for nil handler", "name", name)
			continue
		}

		finalHandler := applyMiddleware(regHandler.Handler, regHandler.Middleware)
		if regHandler.Match != nil {
			b.RegisterHandlerMatchFunc(regHandler.Match, finalHandler)
		} else {
			b.RegisterHandler(regHandler.HandlerType, regHandler.Pattern, regHandler.MatchType, finalHandler)
		}
		log.Debug("Registered handler", "name", name, "pattern", regHandler.Pattern, "middleware_count", len(regHandler.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", len(registeredHandlers))
	return nil
}

// BotCommands lists the described command handlers for SetMyCommands, in
// the given order.
func BotCommands(order []string, registeredHandlers map[string]RegisteredHandler) []models.BotCommand {
	commands := make([]models.BotCommand, 0, len(order))
	for _, name := range order {
		h, ok := registeredHandlers[name]
		if !ok || h.Description == "" || h.Pattern == "" {
			continue
		}
		commands = append(commands, models.BotCommand{Command: h.Pattern, Description: h.Description})
	}
	return commands
}

// SetCommands publishes the command menu. Failure is not fatal to the bot.
func SetCommands(ctx context.Context, b *bot.Bot, logger *slog.Logger, commands []models.BotCommand) {
	if len(commands) == 0 {
		return
	}
	if _, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commands}); err != nil {
		logger.WarnContext(ctx, "Failed to set bot commands", "error", err)
		return
	}
	logger.InfoContext(ctx, "Bot commands set", "count", len(commands))
}

// ConfigureUpdates selects webhook delivery when webhookURL is set and long
// polling otherwise. Pending updates are dropped on switch.
func ConfigureUpdates(ctx context.Context, b *bot.Bot, logger *slog.Logger, webhookURL, secret string) error {
	log := logger.With("component", "telegram_bot")

	if webhookURL == "" {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			return fmt.Errorf("failed to delete webhook: %w", err)
		}
		log.InfoContext(ctx, "Using long polling for updates")
		return nil
	}

	_, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:                webhookURL,
		DropPendingUpdates: true,
		SecretToken:        secret,
	})
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	log.InfoContext(ctx, "Webhook set", "url", webhookURL)
	return nil
}
