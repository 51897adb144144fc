package handlers

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/jarvis/internal/telegram"
)

// commandArgs returns the text after the command word, trimmed.
// "/weather@jarvis_bot  Paris" yields "Paris".
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

// parseToggle accepts on/off style arguments.
func parseToggle(arg string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "yes", "true", "1", "вкл":
		return true, true
	case "off", "no", "false", "0", "выкл":
		return false, true
	}
	return false, false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// displayName builds a readable name for the sender.
func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// messageText returns the text or caption of a message.
func messageText(msg *models.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// withBotName replaces the @botname placeholder in configured messages.
func withBotName(deps HandlerDeps, text string) string {
	if info := deps.Config.Telegram.BotInfo; info != nil && info.Username != "" {
		return strings.ReplaceAll(text, "@botname", "@"+info.Username)
	}
	return text
}

// reply sends text to the chat of msg, logging delivery failures.
func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, msg *models.Message, text string) {
	if err := telegram.SendText(ctx, b, msg.Chat.ID, msg.ID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", msg.Chat.ID)
	}
}

// commandMessage validates the update for command handlers.
func commandMessage(ctx context.Context, log *slog.Logger, update *models.Update) (*models.Message, bool) {
	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Handler received update with nil message or sender", "update_id", update.ID)
		return nil, false
	}
	return update.Message, true
}
