package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const resetTimeout = 30 * time.Second

// NewResetHandler returns a handler for the /reset command.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}

	userID := msg.From.ID
	log.InfoContext(ctx, "User requested history reset", "chat_id", msg.Chat.ID, "user_id", userID)

	timeoutCtx, cancel := context.WithTimeout(ctx, resetTimeout)
	defer cancel()

	err := h.deps.Conversation.Reset(timeoutCtx, userID)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.WarnContext(ctx, "Reset operation timed out or was cancelled", "user_id", userID)
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to reset history", "error", err, "user_id", userID)
		reply(ctx, b, log, msg, h.deps.Config.Messages.ResetFailed)
		return
	}

	reply(ctx, b, log, msg, h.deps.Config.Messages.HistoryReset)
}
