// Package lookup answers the /weather and /rate commands from public JSON APIs.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Defaults for Currency.
const (
	DefaultBase    = "USD"
	DefaultSymbols = "RUB,EUR"
)

const maxBody = 1 << 20

// ErrNotFound means the API answered but had nothing for the query.
var ErrNotFound = errors.New("lookup returned no data")

// Client queries the weather and exchange rate APIs.
type Client struct {
	http        *http.Client
	weatherURL  string
	currencyURL string
	userAgent   string
}

// NewClient creates a Client. timeout bounds each request.
func NewClient(weatherURL, currencyURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		http:        &http.Client{Timeout: timeout},
		weatherURL:  strings.TrimRight(weatherURL, "/"),
		currencyURL: currencyURL,
		userAgent:   userAgent,
	}
}

// Weather returns "<area>: <temp>°C (feels like <feels>°C), <description>".
func (c *Client) Weather(ctx context.Context, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}

	body, err := c.get(ctx, c.weatherURL+"/"+url.PathEscape(city)+"?format=j1")
	if err != nil {
		return "", err
	}

	cur := gjson.GetBytes(body, "current_condition.0")
	if !cur.Exists() {
		return "", ErrNotFound
	}
	area := gjson.GetBytes(body, "nearest_area.0.areaName.0.value").String()
	if area == "" {
		area = city
	}

	return fmt.Sprintf("%s: %s°C (feels like %s°C), %s",
		area,
		cur.Get("temp_C").String(),
		cur.Get("FeelsLikeC").String(),
		cur.Get("weatherDesc.0.value").String(),
	), nil
}

// Currency returns one "1 BASE = x.xxxx SYM" line per rate, sorted by symbol,
// or "N/A" when the API returns no rates.
func (c *Client) Currency(ctx context.Context, base, symbols string) (string, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = DefaultBase
	}
	symbols = strings.ToUpper(strings.ReplaceAll(symbols, " ", ""))
	if symbols == "" {
		symbols = DefaultSymbols
	}

	q := url.Values{}
	q.Set("base", base)
	q.Set("symbols", symbols)
	body, err := c.get(ctx, c.currencyURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}

	var lines []string
	gjson.GetBytes(body, "rates").ForEach(func(sym, rate gjson.Result) bool {
		lines = append(lines, fmt.Sprintf("1 %s = %.4f %s", base, rate.Float(), sym.String()))
		return true
	})
	if len(lines) == 0 {
		return "N/A", nil
	}
	sort.Slice(lines, func(i, j int) bool {
		return symbolOf(lines[i]) < symbolOf(lines[j])
	})
	return strings.Join(lines, "\n"), nil
}

func symbolOf(line string) string {
	return line[strings.LastIndexByte(line, ' ')+1:]
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned status %d", req.URL.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s returned invalid JSON", req.URL.Host)
	}
	return body, nil
}
