package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultLLMProvider    = "openai"
	DefaultLLMModel       = "gpt-4o-mini"
	DefaultLLMTTSModel    = "tts-1"
	DefaultLLMTTSVoice    = "alloy"
	DefaultLLMSTTModel    = "whisper-1"
	DefaultLLMImageModel  = "gpt-image-1"
	DefaultLLMTemperature = 0.6
	DefaultLLMMaxTokens   = 1000
	DefaultLLMTimeout     = 60 * time.Second
	DefaultLLMMaxRetries  = 2
	DefaultLLMRetryDelay  = 2 * time.Second

	DefaultDBMaxOpenConns  = 10
	DefaultDBOpTimeout     = 15 * time.Second
	DefaultDBRetentionDays = 0

	DefaultMemoryLimit       = 1500
	DefaultMemorySizeMeasure = "bytes"

	DefaultWebMaxURLs       = 3
	DefaultWebSearchResults = 4
	DefaultWebPerSourceCap  = 4000
	DefaultWebAggregateCap  = 12000
	DefaultWebConcurrency   = 3
	DefaultWebFetchTimeout  = 20 * time.Second
	DefaultWebSearchTimeout = 10 * time.Second
	DefaultWebTotalTimeout  = 25 * time.Second
	DefaultWebSearchURL     = "https://html.duckduckgo.com/html/"
	DefaultWebUserAgent     = "Mozilla/5.0 (compatible; JarvisBot/1.0)"
	DefaultWebWeatherURL    = "https://wttr.in"
	DefaultWebCurrencyURL   = "https://api.exchangerate.host/latest"

	DefaultMoodClassifier = "keyword"

	DefaultBotLanguage       = "ru"
	DefaultBotPersona        = "assistant"
	DefaultBotVoiceMode      = true
	DefaultBotTypingInterval = 4 * time.Second
	DefaultBotRateLimit      = "30/minute"
	DefaultBotRateBurst      = 5

	DefaultHTTPAddr = ":8080"
)

// DefaultTasks are the scheduler entries enabled out of the box.
var DefaultTasks = map[string]TaskConfig{
	"sql_maintenance":  {Enabled: true, Schedule: "0 0 4 * * *"},
	"memory_retention": {Enabled: true, Schedule: "0 30 3 * * *"},
}

// DefaultMessages are the user-facing reply templates.
var DefaultMessages = MessagesConfig{
	Welcome: "👋 Hi, I'm Jarvis. Send me a message or a voice note and I'll answer. Try /help for the command list.",
	Help: "Just write to me, I remember our conversation.\n\n" +
		"/reset - forget the conversation\n" +
		"/persona assistant|professor|sarcastic - reply style\n" +
		"/lang <code> - reply language\n" +
		"/voice on|off - voice replies\n" +
		"/voicetrans on|off - echo voice transcripts\n" +
		"/translate <lang>|off - translate replies\n" +
		"/summarize <text> - summarize text or the replied message\n" +
		"/weather <city> - current weather\n" +
		"/rate [BASE] [SYMBOLS] - exchange rates\n" +
		"/image <prompt> - generate an image\n" +
		"/settings - show your settings",
	NotAuthorized:         "🚫 Access denied.",
	RateLimited:           "⏳ Too many messages. Please wait a moment.",
	CompletionUnavailable: "🤖 The assistant is temporarily unavailable. Please try again later.",
	StorageError:          "💾 I couldn't access the conversation history. Please try again later.",
	HistoryReset:          "🔄 Conversation history has been cleared.",
	ResetFailed:           "❌ Failed to clear the history. Please try again.",
	SettingsUpdated:       "✅ Settings updated.",
	SettingsFailed:        "❌ Failed to update settings. Please try again.",
	Settings:              "⚙️ Settings\nLanguage: %s\nPersona: %s\nVoice replies: %s\nVoice transcripts: %s\nTranslate to: %s",
	InvalidArgument:       "ℹ️ Usage: %s",
	ProvideText:           "ℹ️ Please provide some text.",
	VoiceUnsupported:      "🎙 Voice messages are not supported by the current provider.",
	VoiceFailed:           "🎙 I couldn't understand the voice message.",
	ImageUnsupported:      "🖼 Image generation is not supported by the current provider.",
	LookupFailed:          "❌ Lookup failed. Please try again later.",
	EmptyReply:            "I didn't get that, could you rephrase?",
}
