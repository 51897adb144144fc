// Package webctx decides whether a message needs live web context and, if so,
// gathers it: explicit URLs are fetched directly, otherwise a search provider
// supplies candidate pages. Failures never surface to the caller; they only
// shrink the resulting context blob.
package webctx

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults for Options fields left at zero.
const (
	DefaultMaxURLs       = 3
	DefaultSearchResults = 4
	DefaultPerSourceCap  = 4000
	DefaultAggregateCap  = 12000
	DefaultConcurrency   = 3
	DefaultFetchTimeout  = 20 * time.Second
	DefaultSearchTimeout = 10 * time.Second
	DefaultTotalTimeout  = 25 * time.Second
	DefaultUserAgent     = "Mozilla/5.0 (compatible; JarvisBot/1.0)"
)

var (
	// ErrUnsupportedContent is returned for responses that are neither HTML nor text.
	ErrUnsupportedContent = errors.New("unsupported content type")
	// ErrUnsafeURL is returned for URLs pointing at non-public hosts or using other schemes.
	ErrUnsafeURL = errors.New("unsafe url")
	// ErrParse is returned when a page body cannot be turned into text.
	ErrParse = errors.New("failed to parse document")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// Snippet is the readable text of one fetched source.
type Snippet struct {
	URL   string
	Title string
	Text  string
}

// SearchResult is one hit returned by a SearchProvider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchProvider finds candidate pages for a free-text query.
type SearchProvider interface {
	Search(ctx context.Context, query string, n int) ([]SearchResult, error)
}

// Page is a raw HTTP response body with the metadata needed for extraction.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// PageFetcher retrieves a single page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Observer receives fetch outcomes, typically for metrics.
type Observer interface {
	// FetchFailed is called once per omitted source with its failure category.
	FetchFailed(reason string)
	// ContextGathered is called once per MaybeFetch with used, empty or skipped.
	ContextGathered(result string)
}

type nopObserver struct{}

func (nopObserver) FetchFailed(string)     {}
func (nopObserver) ContextGathered(string) {}

// Options tunes the Fetcher. Zero values fall back to the package defaults.
type Options struct {
	Trigger       Trigger
	MaxURLs       int
	SearchResults int
	PerSourceCap  int
	AggregateCap  int
	Concurrency   int
	FetchTimeout  time.Duration
	SearchTimeout time.Duration
	TotalTimeout  time.Duration
	// CheckURL vets every candidate before it is fetched. Defaults to CheckURL.
	CheckURL func(string) error
}

func (o Options) withDefaults() Options {
	if o.MaxURLs <= 0 {
		o.MaxURLs = DefaultMaxURLs
	}
	if o.SearchResults <= 0 {
		o.SearchResults = DefaultSearchResults
	}
	if o.PerSourceCap <= 0 {
		o.PerSourceCap = DefaultPerSourceCap
	}
	if o.AggregateCap <= 0 {
		o.AggregateCap = DefaultAggregateCap
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = DefaultSearchTimeout
	}
	if o.TotalTimeout <= 0 {
		o.TotalTimeout = DefaultTotalTimeout
	}
	if o.CheckURL == nil {
		o.CheckURL = CheckURL
	}
	if o.Trigger.Keywords == nil {
		o.Trigger.Keywords = DefaultKeywords
	}
	return o
}
