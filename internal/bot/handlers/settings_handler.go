package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/jarvis/internal/conversation"
	"github.com/edgard/jarvis/internal/database"
	"github.com/edgard/jarvis/internal/prompt"
)

// NewSettingsHandler returns a handler for the /settings command.
func NewSettingsHandler(deps HandlerDeps) bot.HandlerFunc {
	return settingsHandler{deps}.Handle
}

type settingsHandler struct {
	deps HandlerDeps
}

func (h settingsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "settings")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}

	user, err := h.deps.Conversation.Settings(ctx, msg.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load settings", "error", err, "user_id", msg.From.ID)
		reply(ctx, b, log, msg, h.deps.Config.Messages.StorageError)
		return
	}

	translate := "off"
	if user.TranslateTo.Valid && user.TranslateTo.String != "" {
		translate = user.TranslateTo.String
	}
	reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.Settings,
		user.Lang, user.Persona, onOff(user.Voice), onOff(user.VoiceTranscript), translate))
}

// NewPersonaHandler returns a handler for /persona <name>.
func NewPersonaHandler(deps HandlerDeps) bot.HandlerFunc {
	return personaHandler{deps}.Handle
}

type personaHandler struct {
	deps HandlerDeps
}

func (h personaHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "persona")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}
	usage := "/persona " + strings.Join(prompt.Personas, "|")

	name := strings.ToLower(commandArgs(msg.Text))
	if name == "" {
		user, err := h.deps.Conversation.Settings(ctx, msg.From.ID)
		if err != nil {
			log.ErrorContext(ctx, "Failed to load settings", "error", err, "user_id", msg.From.ID)
			reply(ctx, b, log, msg, h.deps.Config.Messages.StorageError)
			return
		}
		reply(ctx, b, log, msg, fmt.Sprintf("Persona: %s\n%s", user.Persona,
			fmt.Sprintf(h.deps.Config.Messages.InvalidArgument, usage)))
		return
	}

	updateSettings(ctx, b, h.deps, log, msg, usage, database.UserSettings{Persona: &name})
}

// NewLangHandler returns a handler for /lang <code>.
func NewLangHandler(deps HandlerDeps) bot.HandlerFunc {
	return langHandler{deps}.Handle
}

type langHandler struct {
	deps HandlerDeps
}

func (h langHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "lang")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}
	const usage = "/lang <ru|en|...>"

	lang := commandArgs(msg.Text)
	if lang == "" {
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.InvalidArgument, usage))
		return
	}
	updateSettings(ctx, b, h.deps, log, msg, usage, database.UserSettings{Lang: &lang})
}

// NewTranslateHandler returns a handler for /translate <lang|off>, which
// sets or clears automatic translation of replies.
func NewTranslateHandler(deps HandlerDeps) bot.HandlerFunc {
	return translateHandler{deps}.Handle
}

type translateHandler struct {
	deps HandlerDeps
}

func (h translateHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "translate")

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}
	const usage = "/translate <lang|off>"

	target := commandArgs(msg.Text)
	switch {
	case target == "":
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.InvalidArgument, usage))
		return
	case strings.EqualFold(target, "off"):
		target = ""
	}
	updateSettings(ctx, b, h.deps, log, msg, usage, database.UserSettings{TranslateTo: &target})
}

// NewToggleHandler returns a handler for an on/off setting such as /voice.
// set stores the parsed value in the settings update.
func NewToggleHandler(deps HandlerDeps, command string, set func(*database.UserSettings, bool)) bot.HandlerFunc {
	return toggleHandler{deps: deps, command: command, set: set}.Handle
}

type toggleHandler struct {
	deps    HandlerDeps
	command string
	set     func(*database.UserSettings, bool)
}

func (h toggleHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", h.command)

	msg, ok := commandMessage(ctx, log, update)
	if !ok {
		return
	}
	usage := "/" + h.command + " <on|off>"

	value, ok := parseToggle(commandArgs(msg.Text))
	if !ok {
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.InvalidArgument, usage))
		return
	}

	var settings database.UserSettings
	h.set(&settings, value)
	updateSettings(ctx, b, h.deps, log, msg, usage, settings)
}

func setVoice(s *database.UserSettings, v bool)           { s.Voice = &v }
func setVoiceTranscript(s *database.UserSettings, v bool) { s.VoiceTranscript = &v }

func updateSettings(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, msg *models.Message, usage string, settings database.UserSettings) {
	err := deps.Conversation.UpdateSettings(ctx, msg.From.ID, settings)
	switch {
	case errors.Is(err, conversation.ErrInvalidSetting):
		log.InfoContext(ctx, "Rejected settings update", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, log, msg, fmt.Sprintf(deps.Config.Messages.InvalidArgument, usage))
	case err != nil:
		log.ErrorContext(ctx, "Failed to update settings", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, log, msg, deps.Config.Messages.SettingsFailed)
	default:
		log.InfoContext(ctx, "Settings updated", "user_id", msg.From.ID)
		reply(ctx, b, log, msg, deps.Config.Messages.SettingsUpdated)
	}
}
