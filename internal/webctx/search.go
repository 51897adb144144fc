package webctx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// DefaultSearchURL is the JavaScript-free DuckDuckGo endpoint.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

const maxSearchBody = 2 << 20

// DuckDuckGo searches the HTML DuckDuckGo frontend.
type DuckDuckGo struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo provider. An empty baseURL selects DefaultSearchURL.
func NewDuckDuckGo(baseURL, userAgent string, client *http.Client) *DuckDuckGo {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultSearchURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultSearchTimeout}
	}
	return &DuckDuckGo{BaseURL: baseURL, UserAgent: userAgent, HTTPClient: client}
}

// Search returns up to n results for query.
func (d *DuckDuckGo) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if n <= 0 {
		n = DefaultSearchResults
	}

	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search base url: %w", err)
	}
	u := *base
	qs := u.Query()
	qs.Set("q", query)
	u.RawQuery = qs.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: u.Redacted(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	return ParseDuckDuckGoHTML(body, n)
}

// ParseDuckDuckGoHTML extracts result links and their snippets from a results page.
func ParseDuckDuckGoHTML(body []byte, maxResults int) ([]SearchResult, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var out []SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				href := attr(n, "href")
				title := strings.Join(strings.Fields(textContent(n)), " ")
				if href != "" && title != "" {
					out = append(out, SearchResult{Title: title, URL: normalizeResultURL(href)})
				}
				return
			case hasClass(n, "result__snippet"):
				// Snippets follow their title link inside the same result block.
				if len(out) > 0 && out[len(out)-1].Snippet == "" {
					out[len(out)-1].Snippet = strings.Join(strings.Fields(textContent(n)), " ")
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func normalizeResultURL(href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}

	// Redirect links look like //duckduckgo.com/l/?uddg=<encoded target>.
	if u.Path == "/l/" {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
