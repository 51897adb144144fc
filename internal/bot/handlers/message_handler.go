package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/jarvis/internal/conversation"
	"github.com/edgard/jarvis/internal/llm"
	"github.com/edgard/jarvis/internal/telegram"
)

const (
	replyTimeout = 3 * time.Minute
	speakTimeout = time.Minute
)

// NewMessageHandler returns the default handler. It answers plain text
// through the conversation pipeline and unknown commands with the help text.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update without message or sender", "update_id", update.ID)
		return
	}

	text := strings.TrimSpace(messageText(msg))
	if text == "" {
		log.DebugContext(ctx, "Ignoring message without text", "chat_id", msg.Chat.ID)
		return
	}
	if strings.HasPrefix(text, "/") {
		log.InfoContext(ctx, "Unknown command", "chat_id", msg.Chat.ID, "command", strings.Fields(text)[0])
		reply(ctx, b, log, msg, withBotName(h.deps, h.deps.Config.Messages.Help))
		return
	}

	respond(ctx, b, h.deps, log, msg, text)
}

// respond runs one conversation exchange for text and delivers the reply,
// the optional voice note and the optional translation.
func respond(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, msg *models.Message, text string) {
	chatID := msg.Chat.ID

	replyCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	stopTyping := telegram.KeepTyping(replyCtx, b, chatID, models.ChatActionTyping, deps.Config.Bot.TypingInterval)
	resp, err := deps.Conversation.Reply(replyCtx, conversation.Request{
		UserID:      msg.From.ID,
		DisplayName: displayName(msg.From),
		Text:        text,
	})
	stopTyping()

	switch {
	case errors.Is(err, conversation.ErrNotRecorded):
		log.WarnContext(ctx, "Reply delivered without being recorded", "user_id", msg.From.ID, "error", err)
	case errors.Is(err, conversation.ErrEmptyMessage):
		reply(ctx, b, log, msg, deps.Config.Messages.ProvideText)
		return
	case errors.Is(err, conversation.ErrCompletionUnavailable):
		log.ErrorContext(ctx, "Completion unavailable", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, log, msg, deps.Config.Messages.CompletionUnavailable)
		return
	case errors.Is(err, conversation.ErrStorage):
		log.ErrorContext(ctx, "Storage unavailable", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, log, msg, deps.Config.Messages.StorageError)
		return
	case err != nil:
		if ctx.Err() != nil {
			log.WarnContext(ctx, "Exchange cancelled", "user_id", msg.From.ID, "error", err)
			return
		}
		log.ErrorContext(ctx, "Exchange failed", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, log, msg, deps.Config.Messages.CompletionUnavailable)
		return
	}

	if resp.Text == "" {
		resp.Text = deps.Config.Messages.EmptyReply
	}
	reply(ctx, b, log, msg, resp.Text)

	if resp.Voice {
		sendSpoken(ctx, b, deps, log, msg, resp.Text)
	}
	if resp.TranslatedText != "" {
		if err := telegram.SendText(ctx, b, chatID, 0, resp.TranslatedText); err != nil {
			log.ErrorContext(ctx, "Failed to send translation", "error", err, "chat_id", chatID)
		}
	}

	log.InfoContext(ctx, "Reply sent",
		"chat_id", chatID,
		"user_id", msg.From.ID,
		"web_context", resp.UsedWebContext,
		"voice", resp.Voice,
		"translated", resp.TranslatedText != "")
}

// sendSpoken voices text when the provider supports speech.
func sendSpoken(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, msg *models.Message, text string) {
	speaker, ok := deps.Client.(llm.Speaker)
	if !ok {
		log.DebugContext(ctx, "Provider cannot synthesize speech, skipping voice reply")
		return
	}

	speakCtx, cancel := context.WithTimeout(ctx, speakTimeout)
	defer cancel()

	stop := telegram.KeepTyping(speakCtx, b, msg.Chat.ID, models.ChatActionRecordVoice, deps.Config.Bot.TypingInterval)
	audio, err := speaker.Speak(speakCtx, text, deps.Config.LLM.TTSVoice)
	stop()
	if err != nil {
		log.WarnContext(ctx, "Speech synthesis failed", "error", err)
		return
	}
	if err := telegram.SendVoice(ctx, b, msg.Chat.ID, msg.ID, audio); err != nil {
		log.ErrorContext(ctx, "Failed to send voice reply", "error", err, "chat_id", msg.Chat.ID)
	}
}
