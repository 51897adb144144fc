package webctx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
)

// Failure categories reported to the Observer and in logs.
const (
	ReasonTimeout     = "timeout"
	ReasonStatus      = "status"
	ReasonContentType = "content_type"
	ReasonUnsafeURL   = "unsafe_url"
	ReasonParse       = "parse"
	ReasonNetwork     = "network"
	ReasonSearch      = "search"
)

// Results reported through Observer.ContextGathered.
const (
	ResultUsed    = "used"
	ResultEmpty   = "empty"
	ResultSkipped = "skipped"
)

// Fetcher builds the web context blob for a user message.
type Fetcher struct {
	search   SearchProvider
	pages    PageFetcher
	opts     Options
	logger   *slog.Logger
	observer Observer
}

// NewFetcher creates a Fetcher. search may be nil, in which case only explicit
// URLs are ever fetched. observer may be nil.
func NewFetcher(search SearchProvider, pages PageFetcher, opts Options, logger *slog.Logger, observer Observer) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Fetcher{
		search:   search,
		pages:    pages,
		opts:     opts.withDefaults(),
		logger:   logger.With("component", "webctx"),
		observer: observer,
	}
}

// MaybeFetch returns a bounded context blob for userText, or "" when the message
// does not need web context or nothing could be fetched. It never fails.
func (f *Fetcher) MaybeFetch(ctx context.Context, userText string) string {
	if !NeedWeb(userText, f.opts.Trigger) {
		f.observer.ContextGathered(ResultSkipped)
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.TotalTimeout)
	defer cancel()

	candidates := f.candidates(ctx, userText)
	snippets := f.fetchAll(ctx, candidates)

	blob := Aggregate(snippets, f.opts.AggregateCap)
	if blob == "" {
		f.observer.ContextGathered(ResultEmpty)
		f.logger.DebugContext(ctx, "No web context gathered", "candidates", len(candidates))
		return ""
	}

	f.observer.ContextGathered(ResultUsed)
	f.logger.DebugContext(ctx, "Web context gathered", "candidates", len(candidates), "sources", len(snippets), "chars", len([]rune(blob)))
	return blob
}

// candidates resolves the URLs to fetch: explicit links first, search results otherwise.
func (f *Fetcher) candidates(ctx context.Context, userText string) []SearchResult {
	if urls := FindURLs(userText); len(urls) > 0 {
		if len(urls) > f.opts.MaxURLs {
			urls = urls[:f.opts.MaxURLs]
		}
		out := make([]SearchResult, len(urls))
		for i, u := range urls {
			out[i] = SearchResult{URL: u}
		}
		return out
	}

	if f.search == nil {
		return nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, f.opts.SearchTimeout)
	defer cancel()

	results, err := f.search.Search(searchCtx, userText, f.opts.SearchResults)
	if err != nil {
		f.observer.FetchFailed(ReasonSearch)
		f.logger.WarnContext(ctx, "Web search failed", "reason", classify(err), "error", err)
		return nil
	}

	seen := make(map[string]struct{}, len(results))
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
		if len(out) == f.opts.SearchResults {
			break
		}
	}
	return out
}

// fetchAll fetches candidates concurrently and keeps successful snippets in candidate order.
func (f *Fetcher) fetchAll(ctx context.Context, candidates []SearchResult) []Snippet {
	if len(candidates) == 0 {
		return nil
	}

	results := make([]*Snippet, len(candidates))
	g := new(errgroup.Group)
	g.SetLimit(f.opts.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			snippet, err := f.fetchSnippet(ctx, c.URL)
			if err != nil {
				reason := classify(err)
				f.observer.FetchFailed(reason)
				if reason == ReasonUnsafeURL {
					f.logger.WarnContext(ctx, "Rejected web source", "url", c.URL, "reason", reason, "error", err)
				} else {
					f.logger.DebugContext(ctx, "Skipping web source", "url", c.URL, "reason", reason, "error", err)
				}
				return nil
			}
			if snippet.Title == "" {
				snippet.Title = c.Title
			}
			results[i] = &snippet
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Snippet, 0, len(results))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// fetchSnippet retrieves one source and reduces it to at most PerSourceCap runes of text.
func (f *Fetcher) fetchSnippet(ctx context.Context, rawURL string) (Snippet, error) {
	if err := f.opts.CheckURL(rawURL); err != nil {
		return Snippet{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.FetchTimeout)
	defer cancel()

	page, err := f.pages.Fetch(ctx, rawURL)
	if err != nil {
		return Snippet{}, err
	}
	if page.StatusCode != 0 && (page.StatusCode < 200 || page.StatusCode >= 300) {
		return Snippet{}, &StatusError{URL: rawURL, StatusCode: page.StatusCode}
	}

	title, text, err := pageText(page)
	if err != nil {
		return Snippet{}, err
	}
	if text == "" {
		return Snippet{}, ErrParse
	}

	return Snippet{
		URL:   rawURL,
		Title: TruncateRunes(title, 200),
		Text:  TruncateRunes(text, f.opts.PerSourceCap),
	}, nil
}

// pageText picks an extraction strategy from the response content type.
func pageText(page Page) (title, text string, err error) {
	contentType := page.ContentType
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(page.Body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", "", ErrUnsupportedContent
	}

	body := decodeBody(page.Body, contentType)
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return ExtractText([]byte(body))
	case strings.HasPrefix(mediaType, "text/"):
		return "", CollapseWhitespace(body), nil
	default:
		return "", "", ErrUnsupportedContent
	}
}

// decodeBody converts the page to UTF-8 using the declared charset, or the
// one sniffed from the markup when the header has none.
func decodeBody(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return strings.ToValidUTF8(string(body), "")
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return strings.ToValidUTF8(string(body), "")
	}
	return strings.ToValidUTF8(string(decoded), "")
}

// Aggregate renders snippets as labelled blocks separated by blank lines and
// truncates the result to aggregateCap runes.
func Aggregate(snippets []Snippet, aggregateCap int) string {
	blocks := make([]string, 0, len(snippets))
	for _, s := range snippets {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Title != "" {
			blocks = append(blocks, s.Title+"\n"+s.URL+"\n"+text)
		} else {
			blocks = append(blocks, s.URL+"\n"+text)
		}
	}
	return TruncateRunes(strings.Join(blocks, "\n\n"), aggregateCap)
}

// classify maps a fetch error onto a failure category.
func classify(err error) string {
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &statusErr):
		return ReasonStatus
	case errors.Is(err, ErrUnsupportedContent):
		return ReasonContentType
	case errors.Is(err, ErrUnsafeURL):
		return ReasonUnsafeURL
	case errors.Is(err, ErrParse):
		return ReasonParse
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	default:
		return ReasonNetwork
	}
}
