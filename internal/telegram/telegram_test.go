package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"fits", "hello", 10, []string{"hello"}},
		{"exact", "0123456789", 10, []string{"0123456789"}},
		{"newline", "first line\nsecond line", 15, []string{"first line\n", "second line"}},
		{"space", "aaaa bbbb cccc", 10, []string{"aaaa bbbb ", "cccc"}},
		{"hard cut", "abcdefghijkl", 5, []string{"abcde", "fghij", "kl"}},
		{"runes", "привет мир как дела", 7, []string{"привет ", "мир ", "как ", "дела"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitMessage(tt.text, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("SplitMessage(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}

func TestSplitMessageLong(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ё", MaxMessageLength*2+17)
	chunks := SplitMessage(text, MaxMessageLength)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Error("chunks do not reassemble the input")
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > MaxMessageLength {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
}

type recordingSender struct {
	mu       sync.Mutex
	texts    []string
	replies  []int
	failFrom int
}

func (s *recordingSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFrom > 0 && len(s.texts)+1 >= s.failFrom {
		return nil, errors.New("telegram down")
	}
	s.texts = append(s.texts, p.Text)
	reply := 0
	if p.ReplyParameters != nil {
		reply = p.ReplyParameters.MessageID
	}
	s.replies = append(s.replies, reply)
	return &models.Message{ID: len(s.texts)}, nil
}

func TestSendText(t *testing.T) {
	t.Parallel()

	s := &recordingSender{}
	text := strings.Repeat("a", MaxMessageLength) + strings.Repeat("b", 10)
	if err := SendText(context.Background(), s, 1, 42, text); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if len(s.texts) != 2 {
		t.Fatalf("sent %d messages, want 2", len(s.texts))
	}
	if s.replies[0] != 42 || s.replies[1] != 0 {
		t.Errorf("reply ids = %v, want [42 0]", s.replies)
	}

	failing := &recordingSender{failFrom: 2}
	if err := SendText(context.Background(), failing, 1, 0, text); err == nil {
		t.Error("SendText() error = nil with failing sender")
	}
}

type countingActions struct{ n atomic.Int32 }

func (c *countingActions) SendChatAction(context.Context, *bot.SendChatActionParams) (bool, error) {
	c.n.Add(1)
	return true, nil
}

func TestKeepTyping(t *testing.T) {
	t.Parallel()

	c := &countingActions{}
	stop := KeepTyping(context.Background(), c, 1, models.ChatActionTyping, 10*time.Millisecond)
	time.Sleep(55 * time.Millisecond)
	stop()
	stop()

	sent := c.n.Load()
	if sent < 2 {
		t.Errorf("sent %d chat actions, want at least 2", sent)
	}
	time.Sleep(30 * time.Millisecond)
	if after := c.n.Load(); after != sent {
		t.Errorf("chat actions continued after stop: %d -> %d", sent, after)
	}
}

type fakeFiles struct {
	file *models.File
	base string
}

func (f fakeFiles) GetFile(context.Context, *bot.GetFileParams) (*models.File, error) {
	if f.file == nil {
		return nil, errors.New("not found")
	}
	return f.file, nil
}

func (f fakeFiles) FileDownloadLink(file *models.File) string {
	return f.base + "/" + file.FilePath
}

func TestDownloadFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/voice/file_1.oga":
			_, _ = io.WriteString(w, "OggS-data")
		case "/voice/empty.oga":
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	data, name, err := DownloadFile(context.Background(), fakeFiles{file: &models.File{FilePath: "voice/file_1.oga"}, base: srv.URL}, srv.Client(), "id")
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if string(data) != "OggS-data" || name != "file_1.oga" {
		t.Errorf("DownloadFile() = %q, %q", data, name)
	}

	tests := []struct {
		name   string
		getter fakeFiles
		fileID string
		target error
	}{
		{"empty id", fakeFiles{base: srv.URL}, "", nil},
		{"get file fails", fakeFiles{base: srv.URL}, "id", nil},
		{"too large", fakeFiles{file: &models.File{FilePath: "voice/file_1.oga", FileSize: MaxDownloadSize + 1}, base: srv.URL}, "id", ErrFileTooLarge},
		{"not found", fakeFiles{file: &models.File{FilePath: "voice/missing.oga"}, base: srv.URL}, "id", nil},
		{"empty body", fakeFiles{file: &models.File{FilePath: "voice/empty.oga"}, base: srv.URL}, "id", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := DownloadFile(context.Background(), tt.getter, srv.Client(), tt.fileID)
			if err == nil {
				t.Fatal("DownloadFile() error = nil")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("DownloadFile() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestBotCommands(t *testing.T) {
	t.Parallel()

	handlers := map[string]RegisteredHandler{
		"/help":  {Pattern: "help", Description: "Show help"},
		"/start": {Pattern: "start", Description: "Start"},
		"voice":  {Description: "hidden, no pattern"},
		"/quiet": {Pattern: "quiet"},
	}
	got := BotCommands([]string{"/start", "/help", "/quiet", "voice", "/missing"}, handlers)
	if len(got) != 2 || got[0].Command != "start" || got[1].Command != "help" {
		t.Errorf("BotCommands() = %+v", got)
	}
}
