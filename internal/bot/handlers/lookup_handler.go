package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const lookupTimeout = 20 * time.Second

// NewWeatherHandler returns a handler for /weather <city>.
func NewWeatherHandler(deps HandlerDeps) bot.HandlerFunc {
	return weatherHandler{deps}.Handle
}

type weatherHandler struct {
	deps HandlerDeps
}

func (h weatherHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "weather")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}

	city := commandArgs(msg.Text)
	if city == "" {
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.InvalidArgument, "/weather <city>"))
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	report, err := h.deps.Lookup.Weather(lookupCtx, city)
	if err != nil {
		log.WarnContext(ctx, "Weather lookup failed", "city", city, "error", err)
		reply(ctx, b, log, msg, h.deps.Config.Messages.LookupFailed)
		return
	}
	reply(ctx, b, log, msg, report)
}

// NewRateHandler returns a handler for /rate [BASE] [SYMBOLS].
func NewRateHandler(deps HandlerDeps) bot.HandlerFunc {
	return rateHandler{deps}.Handle
}

type rateHandler struct {
	deps HandlerDeps
}

func (h rateHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "rate")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}

	var base, symbols string
	if fields := strings.Fields(commandArgs(msg.Text)); len(fields) > 0 {
		base = fields[0]
		symbols = strings.Join(fields[1:], ",")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	rates, err := h.deps.Lookup.Currency(lookupCtx, base, symbols)
	if err != nil {
		log.WarnContext(ctx, "Currency lookup failed", "base", base, "error", err)
		reply(ctx, b, log, msg, h.deps.Config.Messages.LookupFailed)
		return
	}
	reply(ctx, b, log, msg, rates)
}
