// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// senderOf returns the user and chat of an update, or false when the update
// has no sender.
func senderOf(update *models.Update) (userID, chatID int64, ok bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, update.Message.Chat.ID, true
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, 0, true
	}
	return 0, 0, false
}

// AllowedUsers creates a middleware that serves only the users listed in
// bot.allowed_user_ids. An empty list lets everyone through.
func AllowedUsers(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			userID, chatID, ok := senderOf(update)
			if !ok || deps.Config.IsUserAuthorized(userID) {
				next(ctx, bot, update)
				return
			}

			log := deps.Logger.With("middleware", "AllowedUsers")
			log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)

			if chatID == 0 {
				return
			}
			_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: chatID,
				Text:   deps.Config.Messages.NotAuthorized,
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
			}
		}
	}
}

// RateLimit creates a middleware that drops updates from users above their
// token bucket and tells them so.
func RateLimit(deps HandlerDeps, limiter *UserLimiter) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			userID, chatID, ok := senderOf(update)
			if !ok || limiter.Allow(userID) {
				next(ctx, bot, update)
				return
			}

			log := deps.Logger.With("middleware", "RateLimit")
			log.InfoContext(ctx, "Rate limited", "user_id", userID)
			if deps.Metrics != nil {
				deps.Metrics.RateLimited.Inc()
			}

			if chatID == 0 {
				return
			}
			_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: chatID,
				Text:   deps.Config.Messages.RateLimited,
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to send rate limit message", "error", err, "chat_id", chatID)
			}
		}
	}
}

const limiterIdleTTL = 30 * time.Minute

// UserLimiter keeps one token bucket per user. Buckets idle for longer than
// limiterIdleTTL are dropped on the next sweep.
type UserLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	users     map[int64]*userBucket
	lastSweep time.Time
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserLimiter creates a limiter allowing limit events per second with
// the given burst for each user.
func NewUserLimiter(limit rate.Limit, burst int) *UserLimiter {
	return &UserLimiter{
		limit: limit,
		burst: burst,
		now:   time.Now,
		users: make(map[int64]*userBucket),
	}
}

// Allow reports whether userID may proceed now.
func (l *UserLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for id, b := range l.users {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.users, id)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.users[userID]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}
