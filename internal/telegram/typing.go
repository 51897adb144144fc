package telegram

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ChatActionSender is the part of *bot.Bot used for chat actions.
type ChatActionSender interface {
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// KeepTyping shows action in chatID now and every interval until the
// returned stop function is called or ctx ends. Telegram clears an action
// after about five seconds. stop is safe to call more than once.
func KeepTyping(ctx context.Context, s ChatActionSender, chatID int64, action models.ChatAction, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	send := func() {
		// Errors are ignored; the indicator is cosmetic.
		_, _ = s.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: action})
	}

	go func() {
		defer close(done)
		send()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				send()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
