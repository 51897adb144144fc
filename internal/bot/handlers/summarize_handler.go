package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/jarvis/internal/telegram"
)

// NewSummarizeHandler returns a handler for /summarize. It condenses the
// command argument or, without one, the replied-to message.
func NewSummarizeHandler(deps HandlerDeps) bot.HandlerFunc {
	return summarizeHandler{deps}.Handle
}

type summarizeHandler struct {
	deps HandlerDeps
}

func (h summarizeHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "summarize")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}

	text := commandArgs(msg.Text)
	if text == "" {
		text = messageText(msg.ReplyToMessage)
	}
	if text == "" {
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.InvalidArgument, "/summarize <text>, or reply to a message"))
		return
	}

	lang := ""
	if user, err := h.deps.Conversation.Settings(ctx, msg.From.ID); err == nil {
		lang = user.Lang
	} else {
		log.WarnContext(ctx, "Failed to load settings, summarizing in default language", "error", err)
	}

	summaryCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	stop := telegram.KeepTyping(summaryCtx, b, msg.Chat.ID, models.ChatActionTyping, h.deps.Config.Bot.TypingInterval)
	summary, err := h.deps.Conversation.Summarize(summaryCtx, text, lang)
	stop()
	if err != nil {
		log.ErrorContext(ctx, "Summarize failed", "error", err, "user_id", msg.From.ID)
		reply(ctx, b, log, msg, h.deps.Config.Messages.CompletionUnavailable)
		return
	}
	reply(ctx, b, log, msg, summary)
}
