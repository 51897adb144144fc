package webctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	maxPageBody  = 2 << 20
	maxRedirects = 5
)

// HTTPPageFetcher fetches pages over net/http, re-validating every redirect hop.
type HTTPPageFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPPageFetcher builds a fetcher. checkURL validates the original URL and
// every redirect target; nil selects CheckURL.
func NewHTTPPageFetcher(userAgent string, checkURL func(string) error) *HTTPPageFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if checkURL == nil {
		checkURL = CheckURL
	}
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return checkURL(req.URL.String())
		},
	}
	return &HTTPPageFetcher{client: client, userAgent: userAgent}
}

// Fetch downloads at most 2 MiB of the page body. The caller's ctx bounds the request.
func (f *HTTPPageFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		// A rejected redirect comes back wrapped in *url.Error.
		if errors.Is(err, ErrUnsafeURL) {
			return Page{}, err
		}
		return Page{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	page := Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return page, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	page.Body, err = io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return page, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return page, nil
}
