package handlers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/jarvis/internal/llm"
	"github.com/edgard/jarvis/internal/telegram"
)

const transcribeTimeout = 2 * time.Minute

// TranscriptPrefix marks the echoed transcript of a voice note.
const TranscriptPrefix = "🗣 "

// IsVoiceMessage matches updates carrying a voice note or an audio file.
func IsVoiceMessage(update *models.Update) bool {
	msg := update.Message
	return msg != nil && msg.From != nil && (msg.Voice != nil || msg.Audio != nil)
}

// NewVoiceHandler returns a handler that transcribes voice notes and
// answers them like text.
func NewVoiceHandler(deps HandlerDeps) bot.HandlerFunc {
	return voiceHandler{deps}.Handle
}

type voiceHandler struct {
	deps HandlerDeps
}

func (h voiceHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "voice")

	msg := update.Message
	if !IsVoiceMessage(update) {
		log.DebugContext(ctx, "Ignoring update without voice", "update_id", update.ID)
		return
	}

	transcriber, ok := h.deps.Client.(llm.Transcriber)
	if !ok {
		reply(ctx, b, log, msg, h.deps.Config.Messages.VoiceUnsupported)
		return
	}

	fileID := ""
	if msg.Voice != nil {
		fileID = msg.Voice.FileID
	} else {
		fileID = msg.Audio.FileID
	}

	transcribeCtx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	stop := telegram.KeepTyping(transcribeCtx, b, msg.Chat.ID, models.ChatActionTyping, h.deps.Config.Bot.TypingInterval)
	text, err := h.transcribe(transcribeCtx, b, transcriber, fileID)
	stop()
	if err != nil {
		log.WarnContext(ctx, "Voice transcription failed", "chat_id", msg.Chat.ID, "error", err)
		reply(ctx, b, log, msg, h.deps.Config.Messages.VoiceFailed)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		reply(ctx, b, log, msg, h.deps.Config.Messages.VoiceFailed)
		return
	}
	log.InfoContext(ctx, "Voice transcribed", "chat_id", msg.Chat.ID, "length", len(text))

	user, err := h.deps.Conversation.Settings(ctx, msg.From.ID)
	if err != nil {
		log.WarnContext(ctx, "Failed to load settings for transcript echo", "error", err)
	} else if user.VoiceTranscript {
		reply(ctx, b, log, msg, TranscriptPrefix+text)
	}

	respond(ctx, b, h.deps, log, msg, text)
}

func (h voiceHandler) transcribe(ctx context.Context, b *bot.Bot, t llm.Transcriber, fileID string) (string, error) {
	data, name, err := telegram.DownloadFile(ctx, b, h.deps.HTTPClient, fileID)
	if err != nil {
		return "", err
	}
	if name == "" || !strings.Contains(name, ".") {
		name = "voice.ogg"
	}
	text, err := t.Transcribe(ctx, name, bytes.NewReader(data))
	if errors.Is(err, llm.ErrEmptyResponse) {
		return "", nil
	}
	return text, err
}
