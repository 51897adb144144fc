package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/jarvis/internal/llm"
	"github.com/edgard/jarvis/internal/telegram"
)

const imageTimeout = 2 * time.Minute

// NewImageHandler returns a handler for /image <prompt>. Providers without
// llm.Imager get the image_unsupported message.
func NewImageHandler(deps HandlerDeps) bot.HandlerFunc {
	return imageHandler{deps}.Handle
}

type imageHandler struct {
	deps HandlerDeps
}

func (h imageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "image")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}

	imager, ok := h.deps.Client.(llm.Imager)
	if !ok {
		reply(ctx, b, log, msg, h.deps.Config.Messages.ImageUnsupported)
		return
	}

	description := commandArgs(msg.Text)
	if description == "" {
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.InvalidArgument, "/image <description>"))
		return
	}

	imageCtx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()

	stop := telegram.KeepTyping(imageCtx, b, msg.Chat.ID, models.ChatActionUploadPhoto, h.deps.Config.Bot.TypingInterval)
	image, err := imager.Image(imageCtx, description)
	stop()
	if err != nil {
		log.ErrorContext(ctx, "Image generation failed", "error", err, "user_id", msg.From.ID)
		reply(ctx, b, log, msg, h.deps.Config.Messages.CompletionUnavailable)
		return
	}

	if err := telegram.SendPhoto(ctx, b, msg.Chat.ID, msg.ID, image, description); err != nil {
		log.ErrorContext(ctx, "Failed to send image", "error", err, "chat_id", msg.Chat.ID)
		return
	}
	log.InfoContext(ctx, "Image sent", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)
}
