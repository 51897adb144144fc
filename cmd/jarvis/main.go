// Package main contains the entrypoint for the Jarvis Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgard/jarvis/internal/bot"
	"github.com/edgard/jarvis/internal/bot/handlers"
	"github.com/edgard/jarvis/internal/bot/tasks"
	"github.com/edgard/jarvis/internal/config"
	"github.com/edgard/jarvis/internal/conversation"
	"github.com/edgard/jarvis/internal/database"
	"github.com/edgard/jarvis/internal/httpapi"
	"github.com/edgard/jarvis/internal/llm"
	"github.com/edgard/jarvis/internal/logger"
	"github.com/edgard/jarvis/internal/lookup"
	"github.com/edgard/jarvis/internal/memory"
	"github.com/edgard/jarvis/internal/observability"
	"github.com/edgard/jarvis/internal/prompt"
	"github.com/edgard/jarvis/internal/telegram"
	"github.com/edgard/jarvis/internal/webctx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components and returns an
// exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "", "Path to configuration file (default: ./config.yaml if present)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	defer closeStore()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	client, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		log.Error("Failed to initialize completion client", "provider", cfg.LLM.Provider, "error", err)
		return 1
	}

	conv, err := newConversation(cfg, store, client, metrics, log)
	if err != nil {
		log.Error("Failed to initialize conversation service", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Conversation: conv,
		Client:       client,
		Lookup:       lookup.NewClient(cfg.Web.WeatherURL, cfg.Web.CurrencyURL, cfg.Web.UserAgent, cfg.Web.FetchTimeout),
		Metrics:      metrics,
		HTTPClient:   &http.Client{Timeout: time.Minute},
	}

	limit, burst, err := config.ParseRate(cfg.Bot.RateLimit)
	if err != nil {
		log.Error("Invalid rate limit", "rate_limit", cfg.Bot.RateLimit, "error", err)
		return 1
	}
	if cfg.Bot.RateBurst > 0 {
		burst = cfg.Bot.RateBurst
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(
			logger.Middleware(log),
			handlers.AllowedUsers(hDeps),
			handlers.RateLimit(hDeps, handlers.NewUserLimiter(limit, burst)),
		),
		tgbot.WithDefaultHandler(handlers.NewMessageHandler(hDeps)),
	}
	webhook := cfg.Telegram.WebhookURL != ""
	if webhook && cfg.Telegram.WebhookSecret != "" {
		botOpts = append(botOpts, tgbot.WithWebhookSecretToken(cfg.Telegram.WebhookSecret))
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	telegram.SetCommands(ctx, tg, log, telegram.BotCommands(handlers.CommandOrder, cmdHandlers))

	if err := telegram.ConfigureUpdates(ctx, tg, log, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
		log.Error("Failed to configure update delivery", "error", err)
		return 1
	}

	httpDeps := httpapi.Deps{Logger: log, Client: client, Metrics: metrics.Handler()}
	if webhook {
		httpDeps.Webhook = tg.WebhookHandler()
	}
	httpServer := httpapi.New(cfg.HTTP.Addr, httpDeps)

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, tg, webhook, httpServer, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}

// openStore connects the configured storage backend. The returned close
// function is always safe to call.
func openStore(cfg *config.Config, log *slog.Logger) (database.Store, func(), error) {
	if cfg.Database.Driver == database.DriverMemory {
		log.Warn("Using in-memory storage; history is lost on restart")
		return database.NewMemoryStore(), func() {}, nil
	}

	db, err := database.NewDB(database.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, func() {}, err
	}
	return database.NewStore(db, log), func() { database.CloseDB(db) }, nil
}

// newConversation wires the exchange pipeline: budgeter, web context,
// classifiers and recorder.
func newConversation(cfg *config.Config, store database.Store, client llm.Client, metrics *observability.Metrics, log *slog.Logger) (*conversation.Service, error) {
	size, err := memory.SizeFuncFor(cfg.Memory.SizeMeasure)
	if err != nil {
		return nil, err
	}

	mood, err := prompt.NewMoodClassifier(cfg.Mood.Classifier, cfg.Mood.Keywords, client, log)
	if err != nil {
		return nil, err
	}

	searchClient := &http.Client{Timeout: cfg.Web.SearchTimeout}
	fetcher := webctx.NewFetcher(
		webctx.NewDuckDuckGo(cfg.Web.SearchURL, cfg.Web.UserAgent, searchClient),
		webctx.NewHTTPPageFetcher(cfg.Web.UserAgent, webctx.CheckURL),
		webctx.Options{
			Trigger:       webctx.Trigger{Always: cfg.Web.Always, Keywords: cfg.Web.Keywords},
			MaxURLs:       cfg.Web.MaxURLs,
			SearchResults: cfg.Web.SearchResults,
			PerSourceCap:  cfg.Web.PerSourceCap,
			AggregateCap:  cfg.Web.AggregateCap,
			Concurrency:   cfg.Web.Concurrency,
			FetchTimeout:  cfg.Web.FetchTimeout,
			SearchTimeout: cfg.Web.SearchTimeout,
			TotalTimeout:  cfg.Web.TotalTimeout,
		},
		log,
		metrics,
	)

	return conversation.NewService(conversation.Deps{
		Store:    store,
		Recorder: memory.NewRecorder(store),
		Fetcher:  fetcher,
		Client:   client,
		Mood:     mood,
		Language: prompt.ScriptDetector{},
		Locks:    memory.NewKeyedMutex(),
		Observer: metrics,
		Logger:   log,
	}, conversation.Options{
		MemoryLimit:     cfg.Memory.Limit,
		Size:            size,
		DefaultLanguage: cfg.Bot.DefaultLanguage,
		DefaultPersona:  cfg.Bot.DefaultPersona,
		DefaultVoice:    cfg.Bot.VoiceMode,
		OpTimeout:       cfg.Database.OpTimeout,
	})
}
