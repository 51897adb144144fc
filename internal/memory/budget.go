// Package memory selects, records and serializes per-user conversation history.
package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/edgard/jarvis/internal/database"
)

// SizeFunc measures the cost of a single turn against the memory limit.
type SizeFunc func(content string) int

// ByteSize counts UTF-8 encoded bytes.
func ByteSize(content string) int {
	return len(content)
}

// TokenEstimate approximates tokens as one per four bytes, with a minimum of one.
func TokenEstimate(content string) int {
	n := len(content) / 4
	if n < 1 {
		return 1
	}
	return n
}

// RuneSize counts characters.
func RuneSize(content string) int {
	return utf8.RuneCountInString(content)
}

// SizeFuncFor resolves a configured size measure name.
func SizeFuncFor(measure string) (SizeFunc, error) {
	switch strings.ToLower(strings.TrimSpace(measure)) {
	case "", "bytes":
		return ByteSize, nil
	case "tokens":
		return TokenEstimate, nil
	case "runes", "chars":
		return RuneSize, nil
	default:
		return nil, fmt.Errorf("unknown memory size measure %q", measure)
	}
}

// Budget returns the longest suffix of history whose total size fits within limit.
// History must be oldest first. The newest turn is always kept, even when it alone
// exceeds the limit. A non-positive limit disables budgeting.
// The result re-slices history and is never reordered.
func Budget(history []database.Turn, limit int, size SizeFunc) []database.Turn {
	if len(history) == 0 {
		return history[:0:0]
	}
	if limit <= 0 {
		return history
	}
	if size == nil {
		size = ByteSize
	}

	start := len(history) - 1
	total := size(history[start].Content)
	for i := start - 1; i >= 0; i-- {
		n := size(history[i].Content)
		if total+n > limit {
			break
		}
		total += n
		start = i
	}

	return history[start:]
}

// TotalSize sums size over every turn.
func TotalSize(turns []database.Turn, size SizeFunc) int {
	if size == nil {
		size = ByteSize
	}
	total := 0
	for _, t := range turns {
		total += size(t.Content)
	}
	return total
}
