package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MaxMessageLength is Telegram's text limit in runes.
const MaxMessageLength = 4096

const sendMessageTimeout = 10 * time.Second

// MessageSender is the part of *bot.Bot used to deliver text.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// VoiceSender is the part of *bot.Bot used to deliver voice notes.
type VoiceSender interface {
	SendVoice(ctx context.Context, params *bot.SendVoiceParams) (*models.Message, error)
}

// PhotoSender is the part of *bot.Bot used to deliver images.
type PhotoSender interface {
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

// SplitMessage cuts text into chunks of at most limit runes. It prefers to
// break after a newline, then after a space, and only then mid-word.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if text == "" {
		return nil
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)
		window := text[:cut]

		if i := strings.LastIndexByte(window, '\n'); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndexByte(window, ' '); i > 0 {
			cut = i + 1
		}

		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// byteOffset returns the byte index just past the first n runes of s.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// SendText delivers text in as many messages as needed. The first chunk
// replies to replyTo when it is positive.
func SendText(ctx context.Context, s MessageSender, chatID int64, replyTo int, text string) error {
	for i, chunk := range SplitMessage(text, MaxMessageLength) {
		params := &bot.SendMessageParams{ChatID: chatID, Text: chunk}
		if i == 0 && replyTo > 0 {
			params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
		_, err := s.SendMessage(sendCtx, params)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to send message chunk %d: %w", i+1, err)
		}
	}
	return nil
}

// SendVoice uploads an OGG/Opus voice note.
func SendVoice(ctx context.Context, s VoiceSender, chatID int64, replyTo int, audio []byte) error {
	params := &bot.SendVoiceParams{
		ChatID: chatID,
		Voice:  &models.InputFileUpload{Filename: "reply.ogg", Data: bytes.NewReader(audio)},
	}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
	}
	if _, err := s.SendVoice(ctx, params); err != nil {
		return fmt.Errorf("failed to send voice: %w", err)
	}
	return nil
}

// SendPhoto uploads an image with an optional caption.
func SendPhoto(ctx context.Context, s PhotoSender, chatID int64, replyTo int, image []byte, caption string) error {
	if utf8.RuneCountInString(caption) > 1024 {
		caption = string([]rune(caption)[:1021]) + "..."
	}
	params := &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: "image.png", Data: bytes.NewReader(image)},
		Caption: caption,
	}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
	}
	if _, err := s.SendPhoto(ctx, params); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}
