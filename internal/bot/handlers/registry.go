package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/jarvis/internal/telegram"
)

// CommandOrder is the order commands appear in the Telegram menu.
var CommandOrder = []string{
	"/start", "/help", "/reset", "/settings", "/persona", "/lang", "/voice",
	"/voicetrans", "/translate", "/summarize", "/weather", "/rate", "/image",
}

func command(pattern, description string, handler tgbot.HandlerFunc) telegram.RegisteredHandler {
	return telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     pattern,
		Handler:     handler,
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Description: description,
	}
}

// RegisterAllCommands initializes and returns a map of all available bot
// commands plus the voice note handler. Plain text is served by the default
// handler, NewMessageHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)

	handlers["/start"] = command("start", "Start talking to the bot", NewStartHandler(deps))
	handlers["/help"] = command("help", "Show available commands", NewHelpHandler(deps))
	handlers["/reset"] = command("reset", "Forget our conversation", NewResetHandler(deps))
	handlers["/settings"] = command("settings", "Show your settings", NewSettingsHandler(deps))
	handlers["/persona"] = command("persona", "Set the persona", NewPersonaHandler(deps))
	handlers["/lang"] = command("lang", "Set the reply language", NewLangHandler(deps))
	handlers["/voice"] = command("voice", "Toggle voice replies", NewToggleHandler(deps, "voice", setVoice))
	handlers["/voicetrans"] = command("voicetrans", "Toggle voice transcripts", NewToggleHandler(deps, "voicetrans", setVoiceTranscript))
	handlers["/translate"] = command("translate", "Translate replies to a language, or off", NewTranslateHandler(deps))
	handlers["/summarize"] = command("summarize", "Summarize text or a replied message", NewSummarizeHandler(deps))
	handlers["/weather"] = command("weather", "Current weather for a city", NewWeatherHandler(deps))
	handlers["/rate"] = command("rate", "Currency exchange rates", NewRateHandler(deps))
	handlers["/image"] = command("image", "Generate an image", NewImageHandler(deps))

	handlers["voice"] = telegram.RegisteredHandler{
		Handler: NewVoiceHandler(deps),
		Match:   IsVoiceMessage,
	}

	return handlers
}
