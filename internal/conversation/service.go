// Package conversation runs one chat exchange end to end: it loads and
// budgets the user's history, gathers web context, asks the model and records
// the result.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/edgard/jarvis/internal/database"
	"github.com/edgard/jarvis/internal/llm"
	"github.com/edgard/jarvis/internal/logger"
	"github.com/edgard/jarvis/internal/memory"
	"github.com/edgard/jarvis/internal/observability"
	"github.com/edgard/jarvis/internal/prompt"
)

var (
	// ErrCompletionUnavailable means the model could not produce a reply.
	// Nothing was recorded.
	ErrCompletionUnavailable = errors.New("completion unavailable")
	// ErrStorage means history or settings could not be read or written.
	ErrStorage = errors.New("storage unavailable")
	// ErrNotRecorded accompanies a valid Response whose exchange failed to persist.
	ErrNotRecorded = errors.New("exchange not recorded")
	// ErrInvalidSetting rejects a settings update with an unknown value.
	ErrInvalidSetting = errors.New("invalid setting")
	// ErrEmptyMessage rejects requests without text.
	ErrEmptyMessage = errors.New("empty message")
)

var langCode = regexp.MustCompile(`^[a-z]{2,8}$`)

// ContextFetcher gathers web context for a message. It never fails; an empty
// string means no context.
type ContextFetcher interface {
	MaybeFetch(ctx context.Context, userText string) string
}

// Observer receives exchange outcomes and completion latencies.
type Observer interface {
	ObserveExchange(outcome string)
	ObserveCompletion(d time.Duration)
}

// Deps are the collaborators of a Service. Fetcher, Mood, Language and
// Observer are optional.
type Deps struct {
	Store    database.Store
	Recorder *memory.Recorder
	Fetcher  ContextFetcher
	Client   llm.Client
	Mood     prompt.MoodClassifier
	Language prompt.LanguageDetector
	Locks    *memory.KeyedMutex
	Observer Observer
	Logger   *slog.Logger
}

// Options tune a Service.
type Options struct {
	MemoryLimit     int
	Size            memory.SizeFunc
	DefaultLanguage string
	DefaultPersona  string
	DefaultVoice    bool
	OpTimeout       time.Duration
}

// Request is one incoming user message. A non-nil History replaces the
// stored history for this exchange; the exchange is still recorded.
type Request struct {
	UserID      int64
	DisplayName string
	Text        string
	History     *[]database.Turn
}

// Response is the model's reply and how to deliver it.
type Response struct {
	Text           string
	UsedWebContext bool
	TranslatedText string
	Voice          bool
}

// Service implements the conversation pipeline.
type Service struct {
	deps Deps
	opts Options
	log  *slog.Logger
}

// NewService validates deps and fills option defaults.
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Store == nil || deps.Client == nil {
		return nil, fmt.Errorf("conversation service requires a store and a completion client")
	}
	if deps.Recorder == nil {
		deps.Recorder = memory.NewRecorder(deps.Store)
	}
	if deps.Locks == nil {
		deps.Locks = memory.NewKeyedMutex()
	}
	if deps.Mood == nil {
		deps.Mood = prompt.NeutralClassifier{}
	}
	if deps.Language == nil {
		deps.Language = prompt.ScriptDetector{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.Size == nil {
		opts.Size = memory.ByteSize
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = string(prompt.LanguageRussian)
	}
	if !prompt.ValidPersona(opts.DefaultPersona) {
		opts.DefaultPersona = prompt.PersonaAssistant
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 15 * time.Second
	}

	return &Service{
		deps: deps,
		opts: opts,
		log:  deps.Logger.With("component", "conversation"),
	}, nil
}

// Reply runs the whole exchange under the user's lock.
//
// On ErrNotRecorded the returned Response is still valid and should be delivered.
func (s *Service) Reply(ctx context.Context, req Request) (Response, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Response{}, ErrEmptyMessage
	}
	log := s.log.With("user_id", req.UserID, "request_id", logger.RequestID(ctx))

	unlock, err := s.deps.Locks.Lock(ctx, req.UserID)
	if err != nil {
		return Response{}, fmt.Errorf("failed to wait for user lock: %w", err)
	}

	resp, user, recordErr, err := s.exchange(ctx, log, req, text)
	unlock()
	if err != nil {
		return Response{}, err
	}

	if user.TranslateTo.Valid && user.TranslateTo.String != "" && user.TranslateTo.String != user.Lang {
		translated, err := s.Translate(ctx, resp.Text, user.TranslateTo.String)
		if err != nil {
			log.WarnContext(ctx, "Failed to translate reply", "to", user.TranslateTo.String, "error", err)
		} else {
			resp.TranslatedText = translated
		}
	}

	return resp, recordErr
}

// exchange is the locked part of Reply. recordErr is set when the reply is
// valid but could not be persisted.
func (s *Service) exchange(ctx context.Context, log *slog.Logger, req Request, text string) (resp Response, user *database.User, recordErr error, err error) {
	user, err = s.user(ctx, req.UserID, req.DisplayName, text)
	if err != nil {
		s.deps.Observer.ObserveExchange(observability.OutcomeStorage)
		log.ErrorContext(ctx, "Failed to load user", "error", err)
		return Response{}, nil, nil, err
	}

	history, err := s.history(ctx, req)
	if err != nil {
		s.deps.Observer.ObserveExchange(observability.OutcomeStorage)
		log.ErrorContext(ctx, "Failed to read history", "error", err)
		return Response{}, nil, nil, err
	}
	budgeted := memory.Budget(history, s.opts.MemoryLimit, s.opts.Size)

	mood := s.deps.Mood.Classify(ctx, text)

	var blob string
	if s.deps.Fetcher != nil {
		blob = s.deps.Fetcher.MaybeFetch(ctx, text)
	}

	messages := prompt.Assemble(prompt.SystemPrompt(user.Persona, user.Lang, mood), blob, budgeted, text)

	log.DebugContext(ctx, "Requesting completion",
		"history_turns", len(history), "budgeted_turns", len(budgeted),
		"budgeted_size", memory.TotalSize(budgeted, s.opts.Size),
		"web_context", blob != "", "mood", mood)

	start := time.Now()
	reply, err := s.deps.Client.Complete(ctx, llm.CompletionRequest{Messages: messages})
	s.deps.Observer.ObserveCompletion(time.Since(start))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		s.deps.Observer.ObserveExchange(observability.OutcomeCompletion)
		log.ErrorContext(ctx, "Completion failed", "error", err)
		return Response{}, nil, nil, fmt.Errorf("%w: %w", ErrCompletionUnavailable, err)
	}

	resp = Response{Text: reply, UsedWebContext: blob != "", Voice: user.Voice}

	storeCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()
	if err := s.deps.Recorder.Record(storeCtx, req.UserID, text, reply); err != nil {
		s.deps.Observer.ObserveExchange(observability.OutcomeNotRecorded)
		log.ErrorContext(ctx, "Failed to record exchange", "error", err)
		return resp, user, fmt.Errorf("%w: %w", ErrNotRecorded, err), nil
	}

	s.deps.Observer.ObserveExchange(observability.OutcomeOK)
	log.InfoContext(ctx, "Exchange completed", "reply_chars", len([]rune(reply)), "web_context", resp.UsedWebContext)
	return resp, user, nil, nil
}

// user loads the settings row, creating it on first contact. New users get
// the language of their first message when it can be detected.
func (s *Service) user(ctx context.Context, userID int64, displayName, firstText string) (*database.User, error) {
	lang := s.opts.DefaultLanguage
	if detected := s.deps.Language.Detect(firstText); detected != prompt.LanguageUndetermined {
		lang = string(detected)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	user, err := s.deps.Store.GetOrCreateUser(ctx, userID, database.User{
		DisplayName: displayName,
		Lang:        lang,
		Persona:     s.opts.DefaultPersona,
		Voice:       s.opts.DefaultVoice,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return user, nil
}

func (s *Service) history(ctx context.Context, req Request) ([]database.Turn, error) {
	if req.History != nil {
		return *req.History, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	turns, err := s.deps.Store.ReadTurns(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return turns, nil
}

// Reset deletes the user's history. It waits for any exchange in flight.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	unlock, err := s.deps.Locks.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to wait for user lock: %w", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	deleted, err := s.deps.Recorder.Reset(ctx, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to reset history", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.log.InfoContext(ctx, "History reset", "user_id", userID, "deleted_turns", deleted)
	return nil
}

// Settings returns the user's settings, creating the row with defaults.
func (s *Service) Settings(ctx context.Context, userID int64) (database.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	user, err := s.deps.Store.GetOrCreateUser(ctx, userID, database.User{
		Lang:    s.opts.DefaultLanguage,
		Persona: s.opts.DefaultPersona,
		Voice:   s.opts.DefaultVoice,
	})
	if err != nil {
		return database.User{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return *user, nil
}

// UpdateSettings validates and writes the non-nil fields of settings.
func (s *Service) UpdateSettings(ctx context.Context, userID int64, settings database.UserSettings) error {
	if settings.Persona != nil && !prompt.ValidPersona(*settings.Persona) {
		return fmt.Errorf("%w: unknown persona %q", ErrInvalidSetting, *settings.Persona)
	}
	if settings.Lang != nil {
		lang := strings.ToLower(strings.TrimSpace(*settings.Lang))
		if !langCode.MatchString(lang) {
			return fmt.Errorf("%w: language %q", ErrInvalidSetting, *settings.Lang)
		}
		settings.Lang = &lang
	}
	if settings.TranslateTo != nil && *settings.TranslateTo != "" {
		lang := strings.ToLower(strings.TrimSpace(*settings.TranslateTo))
		if !langCode.MatchString(lang) {
			return fmt.Errorf("%w: language %q", ErrInvalidSetting, *settings.TranslateTo)
		}
		settings.TranslateTo = &lang
	}
	if settings.IsEmpty() {
		return nil
	}

	if _, err := s.Settings(ctx, userID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	if err := s.deps.Store.UpdateUser(ctx, userID, settings); err != nil {
		s.log.ErrorContext(ctx, "Failed to update settings", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Translate renders text in toLang. It is not recorded.
func (s *Service) Translate(ctx context.Context, text, toLang string) (string, error) {
	return s.oneShot(ctx, prompt.TranslateInstruction(toLang), text, 0.2, 1000)
}

// Summarize condenses text in lang. It is not recorded.
func (s *Service) Summarize(ctx context.Context, text, lang string) (string, error) {
	if lang == "" {
		lang = s.opts.DefaultLanguage
	}
	return s.oneShot(ctx, prompt.SummarizeInstruction(lang), text, 0.3, 600)
}

func (s *Service) oneShot(ctx context.Context, instruction, text string, temperature float32, maxTokens int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	start := time.Now()
	out, err := s.deps.Client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: instruction},
			{Role: llm.RoleUser, Content: text},
		},
		Temperature: llm.Float32(temperature),
		MaxTokens:   maxTokens,
	})
	s.deps.Observer.ObserveCompletion(time.Since(start))
	if err == nil && strings.TrimSpace(out) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionUnavailable, err)
	}
	return out, nil
}

type nopObserver struct{}

func (nopObserver) ObserveExchange(string)          {}
func (nopObserver) ObserveCompletion(time.Duration) {}
