package memory

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/edgard/jarvis/internal/database"
)

func turns(contents ...string) []database.Turn {
	out := make([]database.Turn, len(contents))
	for i, c := range contents {
		role := database.RoleUser
		if i%2 == 1 {
			role = database.RoleAssistant
		}
		out[i] = database.Turn{ID: int64(i + 1), UserID: 1, Role: role, Content: c}
	}
	return out
}

func contents(ts []database.Turn) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Content
	}
	return out
}

func TestBudget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		history []database.Turn
		limit   int
		want    []string
	}{
		{
			name:    "empty history",
			history: nil,
			limit:   10,
			want:    []string{},
		},
		{
			name:    "everything fits",
			history: turns("aa", "bb", "cc"),
			limit:   6,
			want:    []string{"aa", "bb", "cc"},
		},
		{
			name:    "drops oldest first",
			history: turns("aaaa", "bb", "cc"),
			limit:   5,
			want:    []string{"bb", "cc"},
		},
		{
			name:    "stops at first overflow even if older turns would fit",
			history: turns("a", "bbbbbbbb", "cc"),
			limit:   4,
			want:    []string{"cc"},
		},
		{
			name:    "newest turn kept when oversized",
			history: turns("a", "bbbbbbbbbb"),
			limit:   3,
			want:    []string{"bbbbbbbbbb"},
		},
		{
			name:    "non-positive limit disables budget",
			history: turns("aaaa", "bbbb"),
			limit:   0,
			want:    []string{"aaaa", "bbbb"},
		},
		{
			name:    "multibyte content counted in bytes",
			history: turns("привет", "ok"),
			limit:   11,
			want:    []string{"ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := contents(Budget(tt.history, tt.limit, ByteSize))
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("Budget() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestBudgetWeatherScenario covers a four-turn history where only the last exchange fits.
func TestBudgetWeatherScenario(t *testing.T) {
	t.Parallel()

	history := turns(
		"What's the weather in Moscow?",
		"It's cloudy, around 5°C.",
		"And tomorrow?",
		"Tomorrow looks sunny, about 8°C.",
	)
	limit := ByteSize(history[2].Content) + ByteSize(history[3].Content)

	got := Budget(history, limit, ByteSize)
	if len(got) != 2 {
		t.Fatalf("Budget() returned %d turns, want 2", len(got))
	}
	if got[0].ID != 3 || got[1].ID != 4 {
		t.Errorf("Budget() ids = [%d %d], want [3 4]", got[0].ID, got[1].ID)
	}
}

// TestBudgetProperties checks the limit, suffix and maximality properties on random histories.
func TestBudgetProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(20240611))
	measures := map[string]SizeFunc{"bytes": ByteSize, "tokens": TokenEstimate, "runes": RuneSize}

	for name, size := range measures {
		t.Run(name, func(t *testing.T) {
			for iter := 0; iter < 500; iter++ {
				n := rng.Intn(20)
				raw := make([]string, n)
				for i := range raw {
					raw[i] = strings.Repeat("я", rng.Intn(40))
				}
				history := turns(raw...)
				limit := 1 + rng.Intn(400)

				got := Budget(history, limit, size)

				if n == 0 {
					if len(got) != 0 {
						t.Fatalf("iter %d: Budget(empty) returned %d turns", iter, len(got))
					}
					continue
				}

				// Contiguous suffix in original order.
				offset := n - len(got)
				for i := range got {
					if got[i].ID != history[offset+i].ID {
						t.Fatalf("iter %d: result is not a suffix of history", iter)
					}
				}

				total := TotalSize(got, size)
				if len(got) > 1 && total > limit {
					t.Fatalf("iter %d: total %d exceeds limit %d", iter, total, limit)
				}
				if len(got) == 0 {
					t.Fatalf("iter %d: newest turn dropped", iter)
				}

				// Maximal: adding the next older turn would overflow.
				if offset > 0 && total+size(history[offset-1].Content) <= limit {
					t.Fatalf("iter %d: suffix is not maximal", iter)
				}
			}
		})
	}
}

func TestSizeFuncFor(t *testing.T) {
	t.Parallel()

	for _, measure := range []string{"", "bytes", "tokens", "Runes", "chars"} {
		if _, err := SizeFuncFor(measure); err != nil {
			t.Errorf("SizeFuncFor(%q) error = %v", measure, err)
		}
	}
	if _, err := SizeFuncFor("words"); err == nil {
		t.Error("SizeFuncFor(words) returned nil error")
	}

	if got := TokenEstimate(""); got != 1 {
		t.Errorf("TokenEstimate(\"\") = %d, want 1", got)
	}
	if got := TokenEstimate(strings.Repeat("a", 40)); got != 10 {
		t.Errorf("TokenEstimate(40 bytes) = %d, want 10", got)
	}
}
