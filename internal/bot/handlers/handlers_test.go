package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/edgard/jarvis/internal/config"
	"github.com/edgard/jarvis/internal/conversation"
	"github.com/edgard/jarvis/internal/database"
	"github.com/edgard/jarvis/internal/observability"
)

type sentMessage struct {
	method string
	chatID string
	text   string
}

// fakeBotAPI records Bot API calls and answers them successfully.
type fakeBotAPI struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)

	values := map[string]string{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				values[k] = v[0]
			}
		}
	} else {
		var raw map[string]any
		body, _ := io.ReadAll(r.Body)
		if json.Unmarshal(body, &raw) == nil {
			for k, v := range raw {
				values[k] = fmt.Sprint(v)
			}
		}
	}

	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{method: method, chatID: values["chat_id"], text: values["text"]})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "sendMessage", "sendVoice", "sendPhoto":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":100,"type":"private"}}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeBotAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.method == "sendMessage" {
			out = append(out, m.text)
		}
	}
	return out
}

func (f *fakeBotAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.method == method {
			n++
		}
	}
	return n
}

func newTestBot(t *testing.T) (*tgbot.Bot, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := tgbot.New("123:test", tgbot.WithServerURL(srv.URL), tgbot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New() error = %v", err)
	}
	return b, api
}

type fakeConversation struct {
	mu       sync.Mutex
	reply    conversation.Response
	replyErr error
	resetErr error
	user     database.User
	updates  []database.UserSettings
	requests []conversation.Request
}

func (f *fakeConversation) Reply(_ context.Context, req conversation.Request) (conversation.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.replyErr
}

func (f *fakeConversation) Reset(context.Context, int64) error { return f.resetErr }

func (f *fakeConversation) Settings(context.Context, int64) (database.User, error) {
	return f.user, nil
}

func (f *fakeConversation) UpdateSettings(_ context.Context, _ int64, s database.UserSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.Persona != nil && *s.Persona == "pirate" {
		return fmt.Errorf("%w: persona", conversation.ErrInvalidSetting)
	}
	f.updates = append(f.updates, s)
	return nil
}

func (f *fakeConversation) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

func (f *fakeConversation) Summarize(_ context.Context, text, lang string) (string, error) {
	return "summary(" + lang + "): " + text, nil
}

type fakeLookup struct{ err error }

func (f fakeLookup) Weather(_ context.Context, city string) (string, error) {
	return city + ": 20°C", f.err
}

func (f fakeLookup) Currency(_ context.Context, base, symbols string) (string, error) {
	return base + "->" + symbols, f.err
}

func testDeps(conv *fakeConversation) HandlerDeps {
	return HandlerDeps{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{
			Messages: config.DefaultMessages,
			Bot:      config.BotConfig{TypingInterval: time.Second},
		},
		Conversation: conv,
		Lookup:       fakeLookup{},
	}
}

func textUpdate(userID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Chat: models.Chat{ID: 100, Type: models.ChatTypePrivate},
			From: &models.User{ID: userID, FirstName: "Ann"},
			Text: text,
		},
	}
}

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"/weather Paris", "Paris"},
		{"/weather@jarvis_bot   New York ", "New York"},
		{"/weather", ""},
		{"/summarize\nline one\nline two", "line one\nline two"},
	}
	for _, tt := range tests {
		if got := commandArgs(tt.in); got != tt.want {
			t.Errorf("commandArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseToggle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		value, ok bool
	}{
		{"on", true, true},
		{"OFF", false, true},
		{"1", true, true},
		{"maybe", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		value, ok := parseToggle(tt.in)
		if value != tt.value || ok != tt.ok {
			t.Errorf("parseToggle(%q) = %v, %v", tt.in, value, ok)
		}
	}
}

func TestUserLimiter(t *testing.T) {
	t.Parallel()

	l := NewUserLimiter(0.001, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow(1) || !l.Allow(1) {
		t.Fatal("burst not allowed")
	}
	if l.Allow(1) {
		t.Error("third event inside burst allowed")
	}
	if !l.Allow(2) {
		t.Error("other user limited")
	}

	now = now.Add(limiterIdleTTL + time.Minute)
	l.Allow(2)
	if _, ok := l.users[1]; ok {
		t.Error("idle bucket not swept")
	}
}

func TestMessageHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		reply     conversation.Response
		replyErr  error
		wantTexts []string
	}{
		{
			name:      "reply",
			text:      "hello",
			reply:     conversation.Response{Text: "hi there"},
			wantTexts: []string{"hi there"},
		},
		{
			name:      "reply with translation",
			text:      "hello",
			reply:     conversation.Response{Text: "привет", TranslatedText: "hello"},
			wantTexts: []string{"привет", "hello"},
		},
		{
			name:      "not recorded still delivered",
			text:      "hello",
			reply:     conversation.Response{Text: "hi"},
			replyErr:  conversation.ErrNotRecorded,
			wantTexts: []string{"hi"},
		},
		{
			name:      "completion unavailable",
			text:      "hello",
			replyErr:  fmt.Errorf("%w: timeout", conversation.ErrCompletionUnavailable),
			wantTexts: []string{config.DefaultMessages.CompletionUnavailable},
		},
		{
			name:      "storage error",
			text:      "hello",
			replyErr:  fmt.Errorf("%w: locked", conversation.ErrStorage),
			wantTexts: []string{config.DefaultMessages.StorageError},
		},
		{
			name:      "unknown command",
			text:      "/nope",
			wantTexts: []string{config.DefaultMessages.Help},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, api := newTestBot(t)
			conv := &fakeConversation{reply: tt.reply, replyErr: tt.replyErr}

			NewMessageHandler(testDeps(conv))(context.Background(), b, textUpdate(7, tt.text))

			got := api.texts()
			if strings.Join(got, "|") != strings.Join(tt.wantTexts, "|") {
				t.Errorf("sent %q, want %q", got, tt.wantTexts)
			}
		})
	}
}

func TestMessageHandlerRequest(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t)
	conv := &fakeConversation{reply: conversation.Response{Text: "ok"}}
	NewMessageHandler(testDeps(conv))(context.Background(), b, textUpdate(7, "  what's new?  "))

	if len(conv.requests) != 1 {
		t.Fatalf("Reply called %d times", len(conv.requests))
	}
	req := conv.requests[0]
	if req.UserID != 7 || req.DisplayName != "Ann" || req.Text != "what's new?" {
		t.Errorf("request = %+v", req)
	}
}

func TestResetHandler(t *testing.T) {
	t.Parallel()

	b, api := newTestBot(t)
	NewResetHandler(testDeps(&fakeConversation{}))(context.Background(), b, textUpdate(7, "/reset"))

	b2, api2 := newTestBot(t)
	NewResetHandler(testDeps(&fakeConversation{resetErr: errors.New("db")}))(context.Background(), b2, textUpdate(7, "/reset"))

	if got := api.texts(); len(got) != 1 || got[0] != config.DefaultMessages.HistoryReset {
		t.Errorf("reset sent %q", got)
	}
	if got := api2.texts(); len(got) != 1 || got[0] != config.DefaultMessages.ResetFailed {
		t.Errorf("failed reset sent %q", got)
	}
}

func TestSettingsHandlers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler func(HandlerDeps) tgbot.HandlerFunc
		text    string
		want    string
		check   func(t *testing.T, s database.UserSettings)
	}{
		{
			name:    "voice on",
			handler: func(d HandlerDeps) tgbot.HandlerFunc { return NewToggleHandler(d, "voice", setVoice) },
			text:    "/voice on",
			want:    config.DefaultMessages.SettingsUpdated,
			check: func(t *testing.T, s database.UserSettings) {
				if s.Voice == nil || !*s.Voice {
					t.Errorf("Voice = %v", s.Voice)
				}
			},
		},
		{
			name:    "voice bad argument",
			handler: func(d HandlerDeps) tgbot.HandlerFunc { return NewToggleHandler(d, "voice", setVoice) },
			text:    "/voice loud",
			want:    fmt.Sprintf(config.DefaultMessages.InvalidArgument, "/voice <on|off>"),
		},
		{
			name:    "transcript off",
			handler: func(d HandlerDeps) tgbot.HandlerFunc { return NewToggleHandler(d, "voicetrans", setVoiceTranscript) },
			text:    "/voicetrans off",
			want:    config.DefaultMessages.SettingsUpdated,
			check: func(t *testing.T, s database.UserSettings) {
				if s.VoiceTranscript == nil || *s.VoiceTranscript {
					t.Errorf("VoiceTranscript = %v", s.VoiceTranscript)
				}
			},
		},
		{
			name:    "translate off clears",
			handler: NewTranslateHandler,
			text:    "/translate off",
			want:    config.DefaultMessages.SettingsUpdated,
			check: func(t *testing.T, s database.UserSettings) {
				if s.TranslateTo == nil || *s.TranslateTo != "" {
					t.Errorf("TranslateTo = %v", s.TranslateTo)
				}
			},
		},
		{
			name:    "persona rejected",
			handler: NewPersonaHandler,
			text:    "/persona pirate",
			want:    fmt.Sprintf(config.DefaultMessages.InvalidArgument, "/persona assistant|professor|sarcastic"),
		},
		{
			name:    "lang",
			handler: NewLangHandler,
			text:    "/lang en",
			want:    config.DefaultMessages.SettingsUpdated,
			check: func(t *testing.T, s database.UserSettings) {
				if s.Lang == nil || *s.Lang != "en" {
					t.Errorf("Lang = %v", s.Lang)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, api := newTestBot(t)
			conv := &fakeConversation{}

			tt.handler(testDeps(conv))(context.Background(), b, textUpdate(7, tt.text))

			if got := api.texts(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("sent %q, want %q", got, tt.want)
			}
			if tt.check != nil {
				if len(conv.updates) != 1 {
					t.Fatalf("UpdateSettings called %d times", len(conv.updates))
				}
				tt.check(t, conv.updates[0])
			}
		})
	}
}

func TestShowSettings(t *testing.T) {
	t.Parallel()

	b, api := newTestBot(t)
	conv := &fakeConversation{user: database.User{
		Lang:            "en",
		Persona:         "professor",
		Voice:           true,
		TranslateTo:     sql.NullString{String: "de", Valid: true},
		VoiceTranscript: false,
	}}
	NewSettingsHandler(testDeps(conv))(context.Background(), b, textUpdate(7, "/settings"))

	want := fmt.Sprintf(config.DefaultMessages.Settings, "en", "professor", "on", "off", "de")
	if got := api.texts(); len(got) != 1 || got[0] != want {
		t.Errorf("sent %q, want %q", got, want)
	}
}

func TestLookupHandlers(t *testing.T) {
	t.Parallel()

	b, api := newTestBot(t)
	deps := testDeps(&fakeConversation{})
	ctx := context.Background()

	NewWeatherHandler(deps)(ctx, b, textUpdate(7, "/weather Paris"))
	NewWeatherHandler(deps)(ctx, b, textUpdate(7, "/weather"))
	NewRateHandler(deps)(ctx, b, textUpdate(7, "/rate eur usd rub"))

	deps.Lookup = fakeLookup{err: errors.New("down")}
	NewRateHandler(deps)(ctx, b, textUpdate(7, "/rate"))

	want := []string{
		"Paris: 20°C",
		fmt.Sprintf(config.DefaultMessages.InvalidArgument, "/weather <city>"),
		"eur->usd,rub",
		config.DefaultMessages.LookupFailed,
	}
	if got := api.texts(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sent %q, want %q", got, want)
	}
}

func TestSummarizeUsesReply(t *testing.T) {
	t.Parallel()

	b, api := newTestBot(t)
	conv := &fakeConversation{user: database.User{Lang: "en"}}
	update := textUpdate(7, "/summarize")
	update.Message.ReplyToMessage = &models.Message{ID: 5, Text: "long text"}

	NewSummarizeHandler(testDeps(conv))(context.Background(), b, update)

	if got := api.texts(); len(got) != 1 || got[0] != "summary(en): long text" {
		t.Errorf("sent %q", got)
	}
}

func TestImageUnsupported(t *testing.T) {
	t.Parallel()

	b, api := newTestBot(t)
	NewImageHandler(testDeps(&fakeConversation{}))(context.Background(), b, textUpdate(7, "/image a cat"))

	if got := api.texts(); len(got) != 1 || got[0] != config.DefaultMessages.ImageUnsupported {
		t.Errorf("sent %q", got)
	}
}

func TestVoiceUnsupported(t *testing.T) {
	t.Parallel()

	b, api := newTestBot(t)
	update := textUpdate(7, "")
	update.Message.Voice = &models.Voice{FileID: "f1"}
	if !IsVoiceMessage(update) {
		t.Fatal("IsVoiceMessage() = false")
	}

	NewVoiceHandler(testDeps(&fakeConversation{}))(context.Background(), b, update)

	if got := api.texts(); len(got) != 1 || got[0] != config.DefaultMessages.VoiceUnsupported {
		t.Errorf("sent %q", got)
	}
	if api.count("getFile") != 0 {
		t.Error("voice downloaded without a transcriber")
	}
}

func TestAllowedUsers(t *testing.T) {
	t.Parallel()

	b, api := newTestBot(t)
	deps := testDeps(&fakeConversation{})
	deps.Config.Bot.AllowedUserIDs = []int64{7}

	var served []int64
	next := func(_ context.Context, _ *tgbot.Bot, u *models.Update) { served = append(served, u.Message.From.ID) }
	h := AllowedUsers(deps)(next)

	h(context.Background(), b, textUpdate(7, "hi"))
	h(context.Background(), b, textUpdate(8, "hi"))

	if len(served) != 1 || served[0] != 7 {
		t.Errorf("served %v, want [7]", served)
	}
	if got := api.texts(); len(got) != 1 || got[0] != config.DefaultMessages.NotAuthorized {
		t.Errorf("sent %q", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	b, api := newTestBot(t)
	deps := testDeps(&fakeConversation{})
	deps.Metrics = observability.NewMetrics(nil)

	calls := 0
	next := func(context.Context, *tgbot.Bot, *models.Update) { calls++ }
	h := RateLimit(deps, NewUserLimiter(0.001, 1))(next)

	h(context.Background(), b, textUpdate(7, "one"))
	h(context.Background(), b, textUpdate(7, "two"))

	if calls != 1 {
		t.Errorf("next called %d times, want 1", calls)
	}
	if got := api.texts(); len(got) != 1 || got[0] != config.DefaultMessages.RateLimited {
		t.Errorf("sent %q", got)
	}
	if got := testutil.ToFloat64(deps.Metrics.RateLimited); got != 1 {
		t.Errorf("rate limited counter = %v, want 1", got)
	}
}
