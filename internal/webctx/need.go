package webctx

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultKeywords mark a message as time-sensitive. Entries match whole
// words; a trailing "*" makes the entry a stem that matches any word starting
// with it, which covers Russian inflections.
var DefaultKeywords = []string{
	"сейчас", "сегодня", "новост*", "курс*", "цена", "цены", "цену", "цене", "погод*", "обнов*",
	"now", "today", "news", "price", "prices", "weather", "update", "updates", "updated",
	"latest", "current", "currently",
}

var (
	urlPattern  = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)
	yearPattern = regexp.MustCompile(`\b(\d{4})\b`)
)

// Trigger configures NeedWeb.
type Trigger struct {
	Always   bool
	Keywords []string
	// Now is used for the recent-year check. Defaults to time.Now.
	Now func() time.Time
}

// NeedWeb reports whether text should be augmented with web context.
// Commands and empty messages never are.
func NeedWeb(text string, trigger Trigger) bool {
	t := strings.TrimSpace(text)
	if t == "" || strings.HasPrefix(t, "/") {
		return false
	}
	if trigger.Always {
		return true
	}
	if len(FindURLs(t)) > 0 {
		return true
	}

	lower := strings.ToLower(t)
	for _, kw := range trigger.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && containsKeyword(lower, kw) {
			return true
		}
	}

	now := time.Now
	if trigger.Now != nil {
		now = trigger.Now
	}
	current := now().Year()
	for _, m := range yearPattern.FindAllStringSubmatch(t, -1) {
		year, err := strconv.Atoi(m[1])
		if err == nil && year >= current-1 && year <= current+5 {
			return true
		}
	}
	return false
}

// containsKeyword reports whether kw occurs in s as a whole word, or at the
// start of a word when kw ends with "*".
func containsKeyword(s, kw string) bool {
	stem := strings.HasSuffix(kw, "*")
	kw = strings.TrimSuffix(kw, "*")
	if kw == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		idx := strings.Index(s[offset:], kw)
		if idx < 0 {
			return false
		}
		start, end := offset+idx, offset+idx+len(kw)
		offset = end

		if prev, _ := utf8.DecodeLastRuneInString(s[:start]); start > 0 && isWordRune(prev) {
			continue
		}
		if next, _ := utf8.DecodeRuneInString(s[end:]); !stem && end < len(s) && isWordRune(next) {
			continue
		}
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// FindURLs returns the http(s) URLs in text in order of appearance, without duplicates.
// Trailing punctuation is not considered part of a URL.
func FindURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = trimURLSuffix(m)
		if len(m) <= len("https://") {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func trimURLSuffix(u string) string {
	for {
		trimmed := strings.TrimRight(u, ".,;:!?»…")
		// Drop an unbalanced closing paren, as in "(see https://x.org/a)".
		if strings.HasSuffix(trimmed, ")") && strings.Count(trimmed, "(") < strings.Count(trimmed, ")") {
			trimmed = strings.TrimSuffix(trimmed, ")")
		}
		if trimmed == u {
			return u
		}
		u = trimmed
	}
}
