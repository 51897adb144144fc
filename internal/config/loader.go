package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every derived environment variable name.
const EnvPrefix = "JARVIS"

// envAliases binds the bare deployment variables alongside the prefixed ones.
// The prefixed name always wins when both are set.
var envAliases = map[string][]string{
	"telegram.token":          {"TELEGRAM_BOT_TOKEN"},
	"telegram.base_url":       {"BASE_URL"},
	"telegram.webhook_url":    {},
	"telegram.webhook_secret": {},
	"llm.api_key":             {"OPENAI_API_KEY"},
	"llm.base_url":            {"OPENAI_BASE_URL"},
	"llm.model":               {"OPENAI_MODEL"},
	"llm.tts_model":           {"TTS_MODEL"},
	"llm.tts_voice":           {"TTS_VOICE"},
	"llm.stt_model":           {"STT_MODEL"},
	"llm.image_model":         {"IMAGE_MODEL"},
	"database.driver":         {},
	"database.dsn":            {"DB_URL"},
	"memory.limit":            {"MEMORY_LIMIT"},
	"web.always":              {"ALWAYS_WEB"},
	"web.fetch_timeout":       {"HTTP_TIMEOUT"},
	"bot.default_language":    {"DEFAULT_LANG"},
	"bot.voice_mode":          {"VOICE_MODE"},
	"bot.rate_limit":          {"RATE_LIMIT"},
	"bot.allowed_user_ids":    {"ALLOWED_USER_IDS"},
	"web.keywords":            {},
	"http.port":               {"PORT"},
}

// LoadConfig reads configuration from defaults, the optional YAML file at path
// and the environment, then validates it.
// An empty path looks for config.yaml in the working directory.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("%w: failed to bind env for %s: %v", ErrConfiguration, key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		commaListHook(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return &cfg, nil
}

// setDefaults sets default values for optional configuration parameters
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.tts_model", DefaultLLMTTSModel)
	v.SetDefault("llm.tts_voice", DefaultLLMTTSVoice)
	v.SetDefault("llm.stt_model", DefaultLLMSTTModel)
	v.SetDefault("llm.image_model", DefaultLLMImageModel)
	v.SetDefault("llm.temperature", DefaultLLMTemperature)
	v.SetDefault("llm.max_tokens", DefaultLLMMaxTokens)
	v.SetDefault("llm.timeout", DefaultLLMTimeout)
	v.SetDefault("llm.max_retries", DefaultLLMMaxRetries)
	v.SetDefault("llm.retry_delay", DefaultLLMRetryDelay)

	v.SetDefault("database.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("database.op_timeout", DefaultDBOpTimeout)
	v.SetDefault("database.retention_days", DefaultDBRetentionDays)

	v.SetDefault("memory.limit", DefaultMemoryLimit)
	v.SetDefault("memory.size_measure", DefaultMemorySizeMeasure)

	v.SetDefault("web.always", false)
	v.SetDefault("web.max_urls", DefaultWebMaxURLs)
	v.SetDefault("web.search_results", DefaultWebSearchResults)
	v.SetDefault("web.per_source_cap", DefaultWebPerSourceCap)
	v.SetDefault("web.aggregate_cap", DefaultWebAggregateCap)
	v.SetDefault("web.concurrency", DefaultWebConcurrency)
	v.SetDefault("web.fetch_timeout", DefaultWebFetchTimeout)
	v.SetDefault("web.search_timeout", DefaultWebSearchTimeout)
	v.SetDefault("web.total_timeout", DefaultWebTotalTimeout)
	v.SetDefault("web.search_url", DefaultWebSearchURL)
	v.SetDefault("web.user_agent", DefaultWebUserAgent)
	v.SetDefault("web.weather_url", DefaultWebWeatherURL)
	v.SetDefault("web.currency_url", DefaultWebCurrencyURL)

	v.SetDefault("mood.classifier", DefaultMoodClassifier)

	v.SetDefault("bot.default_language", DefaultBotLanguage)
	v.SetDefault("bot.default_persona", DefaultBotPersona)
	v.SetDefault("bot.voice_mode", DefaultBotVoiceMode)
	v.SetDefault("bot.typing_interval", DefaultBotTypingInterval)
	v.SetDefault("bot.rate_limit", DefaultBotRateLimit)
	v.SetDefault("bot.rate_burst", DefaultBotRateBurst)

	v.SetDefault("http.addr", DefaultHTTPAddr)

	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	m := DefaultMessages
	v.SetDefault("messages.welcome", m.Welcome)
	v.SetDefault("messages.help", m.Help)
	v.SetDefault("messages.not_authorized", m.NotAuthorized)
	v.SetDefault("messages.rate_limited", m.RateLimited)
	v.SetDefault("messages.completion_unavailable", m.CompletionUnavailable)
	v.SetDefault("messages.storage_error", m.StorageError)
	v.SetDefault("messages.history_reset", m.HistoryReset)
	v.SetDefault("messages.reset_failed", m.ResetFailed)
	v.SetDefault("messages.settings_updated", m.SettingsUpdated)
	v.SetDefault("messages.settings_failed", m.SettingsFailed)
	v.SetDefault("messages.settings", m.Settings)
	v.SetDefault("messages.invalid_argument", m.InvalidArgument)
	v.SetDefault("messages.provide_text", m.ProvideText)
	v.SetDefault("messages.voice_unsupported", m.VoiceUnsupported)
	v.SetDefault("messages.voice_failed", m.VoiceFailed)
	v.SetDefault("messages.image_unsupported", m.ImageUnsupported)
	v.SetDefault("messages.lookup_failed", m.LookupFailed)
	v.SetDefault("messages.empty_reply", m.EmptyReply)
}

// normalize derives values that depend on other settings.
func (c *Config) normalize() {
	if c.Telegram.WebhookURL == "" && c.Telegram.BaseURL != "" {
		c.Telegram.WebhookURL = strings.TrimRight(c.Telegram.BaseURL, "/") + "/tgwebhook"
	}

	if c.Database.Driver == "" {
		dsn := strings.ToLower(c.Database.DSN)
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			c.Database.Driver = "postgres"
		} else {
			c.Database.Driver = "sqlite"
		}
	}

	if c.HTTP.Port > 0 {
		c.HTTP.Addr = ":" + strconv.Itoa(c.HTTP.Port)
	}

	c.Bot.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Bot.DefaultLanguage))
}

// secondsToDurationHook accepts bare numbers as seconds for duration fields,
// so HTTP_TIMEOUT=20 means twenty seconds.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(data.(string)), 64)
		if err != nil {
			return data, nil
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
}

// commaListHook splits comma-separated strings into slices of any element
// type, so ALLOWED_USER_IDS=10,20 decodes into []int64. Elements are trimmed
// and empty ones dropped; weak typing converts each one afterwards.
func commaListHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}
		parts := []string{}
		for _, part := range strings.Split(data.(string), ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		return parts, nil
	}
}
