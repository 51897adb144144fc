// Package config loads, defaults and validates the Jarvis configuration.
// Values come from an optional YAML file and environment variables.
package config

import (
	"errors"
	"time"

	"github.com/go-telegram/bot/models"
)

// ErrConfiguration wraps every loading and validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config is the root configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Web       WebConfig       `mapstructure:"web"`
	Mood      MoodConfig      `mapstructure:"mood"`
	Bot       BotConfig       `mapstructure:"bot"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and the optional webhook endpoint.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// BaseURL is the public server URL; WebhookURL defaults to BaseURL + "/tgwebhook".
	BaseURL       string `mapstructure:"base_url"       validate:"omitempty,url"`
	WebhookURL    string `mapstructure:"webhook_url"    validate:"omitempty,url"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// LLMConfig selects and tunes the completion provider.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"     validate:"oneof=openai gemini"`
	APIKey      string        `mapstructure:"api_key"      validate:"required"`
	BaseURL     string        `mapstructure:"base_url"     validate:"omitempty,url"`
	Model       string        `mapstructure:"model"        validate:"required"`
	TTSModel    string        `mapstructure:"tts_model"`
	TTSVoice    string        `mapstructure:"tts_voice"`
	STTModel    string        `mapstructure:"stt_model"`
	ImageModel  string        `mapstructure:"image_model"`
	Temperature float32       `mapstructure:"temperature"  validate:"min=0,max=2"`
	MaxTokens   int           `mapstructure:"max_tokens"   validate:"min=1"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries"  validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"  validate:"min=0"`
}

// DatabaseConfig selects the conversation store.
type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"          validate:"oneof=sqlite postgres memory"`
	DSN           string        `mapstructure:"dsn"             validate:"required_unless=Driver memory"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"  validate:"min=0"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"      validate:"min=1s"`
	RetentionDays int           `mapstructure:"retention_days"  validate:"min=0"`
}

// MemoryConfig bounds how much history is sent with each request.
type MemoryConfig struct {
	Limit       int    `mapstructure:"limit"        validate:"min=0"`
	SizeMeasure string `mapstructure:"size_measure" validate:"oneof=bytes tokens runes"`
}

// WebConfig tunes the web context fetcher and the lookup commands.
type WebConfig struct {
	Always        bool          `mapstructure:"always"`
	Keywords      []string      `mapstructure:"keywords"`
	MaxURLs       int           `mapstructure:"max_urls"        validate:"min=1,max=10"`
	SearchResults int           `mapstructure:"search_results"  validate:"min=1,max=10"`
	PerSourceCap  int           `mapstructure:"per_source_cap"  validate:"min=100"`
	AggregateCap  int           `mapstructure:"aggregate_cap"   validate:"min=100,gtefield=PerSourceCap"`
	Concurrency   int           `mapstructure:"concurrency"     validate:"min=1,max=16"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"   validate:"min=1s"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"  validate:"min=1s"`
	TotalTimeout  time.Duration `mapstructure:"total_timeout"   validate:"min=1s"`
	SearchURL     string        `mapstructure:"search_url"      validate:"omitempty,url"`
	UserAgent     string        `mapstructure:"user_agent"`
	WeatherURL    string        `mapstructure:"weather_url"     validate:"omitempty,url"`
	CurrencyURL   string        `mapstructure:"currency_url"    validate:"omitempty,url"`
}

// MoodConfig selects the mood classifier. Keywords map a mood name to its trigger words.
type MoodConfig struct {
	Classifier string              `mapstructure:"classifier" validate:"oneof=keyword llm off"`
	Keywords   map[string][]string `mapstructure:"keywords"`
}

// BotConfig holds user-facing defaults and limits.
type BotConfig struct {
	DefaultLanguage string        `mapstructure:"default_language" validate:"required,min=2,max=8"`
	DefaultPersona  string        `mapstructure:"default_persona"  validate:"oneof=assistant professor sarcastic"`
	VoiceMode       bool          `mapstructure:"voice_mode"`
	TypingInterval  time.Duration `mapstructure:"typing_interval"  validate:"min=1s"`
	RateLimit       string        `mapstructure:"rate_limit"       validate:"required"`
	RateBurst       int           `mapstructure:"rate_burst"       validate:"min=1"`
	AllowedUserIDs  []int64       `mapstructure:"allowed_user_ids"`
}

// HTTPConfig configures the health, diagnostics and webhook server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	Port int    `mapstructure:"port" validate:"min=0,max=65535"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a task on a six-field cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds every user-facing reply template.
type MessagesConfig struct {
	Welcome               string `mapstructure:"welcome"                validate:"required"`
	Help                  string `mapstructure:"help"                   validate:"required"`
	NotAuthorized         string `mapstructure:"not_authorized"         validate:"required"`
	RateLimited           string `mapstructure:"rate_limited"           validate:"required"`
	CompletionUnavailable string `mapstructure:"completion_unavailable" validate:"required"`
	StorageError          string `mapstructure:"storage_error"          validate:"required"`
	HistoryReset          string `mapstructure:"history_reset"          validate:"required"`
	ResetFailed           string `mapstructure:"reset_failed"           validate:"required"`
	SettingsUpdated       string `mapstructure:"settings_updated"       validate:"required"`
	SettingsFailed        string `mapstructure:"settings_failed"        validate:"required"`
	Settings              string `mapstructure:"settings"               validate:"required"`
	InvalidArgument       string `mapstructure:"invalid_argument"       validate:"required"`
	ProvideText           string `mapstructure:"provide_text"           validate:"required"`
	VoiceUnsupported      string `mapstructure:"voice_unsupported"      validate:"required"`
	VoiceFailed           string `mapstructure:"voice_failed"           validate:"required"`
	ImageUnsupported      string `mapstructure:"image_unsupported"      validate:"required"`
	LookupFailed          string `mapstructure:"lookup_failed"          validate:"required"`
	EmptyReply            string `mapstructure:"empty_reply"            validate:"required"`
}
