package lookup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const wttrFixture = `{
  "current_condition": [{"temp_C": "18", "FeelsLikeC": "16", "weatherDesc": [{"value": "Partly cloudy"}]}],
  "nearest_area": [{"areaName": [{"value": "Saint Petersburg"}]}]
}`

func TestWeather(t *testing.T) {
	t.Parallel()

	var gotPath, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("format")
		_, _ = io.WriteString(w, wttrFixture)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", srv.URL, "test", 5*time.Second)
	got, err := c.Weather(context.Background(), "Saint Petersburg")
	if err != nil {
		t.Fatalf("Weather() error = %v", err)
	}
	if want := "Saint Petersburg: 18°C (feels like 16°C), Partly cloudy"; got != want {
		t.Errorf("Weather() = %q, want %q", got, want)
	}
	if gotPath != "/Saint Petersburg" || gotFormat != "j1" {
		t.Errorf("request path %q format %q", gotPath, gotFormat)
	}
}

func TestWeatherErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			_, _ = io.WriteString(w, `{"current_condition": []}`)
		case "/broken":
			_, _ = io.WriteString(w, `not json`)
		default:
			http.Error(w, "unknown location", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, srv.URL, "", 5*time.Second)
	if _, err := c.Weather(context.Background(), "empty"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Weather(empty) error = %v, want ErrNotFound", err)
	}
	if _, err := c.Weather(context.Background(), "broken"); err == nil {
		t.Error("Weather(broken) error = nil")
	}
	if _, err := c.Weather(context.Background(), "nowhere"); err == nil {
		t.Error("Weather(404) error = nil")
	}
	if _, err := c.Weather(context.Background(), "  "); err == nil {
		t.Error("Weather(blank) error = nil")
	}
}

func TestCurrency(t *testing.T) {
	t.Parallel()

	var gotBase, gotSymbols string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBase = r.URL.Query().Get("base")
		gotSymbols = r.URL.Query().Get("symbols")
		if gotBase == "XXX" {
			_, _ = io.WriteString(w, `{"success": false}`)
			return
		}
		_, _ = io.WriteString(w, `{"base":"USD","rates":{"RUB":92.5,"EUR":0.91234}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, srv.URL+"/latest", "", 5*time.Second)

	got, err := c.Currency(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Currency() error = %v", err)
	}
	if want := "1 USD = 0.9123 EUR\n1 USD = 92.5000 RUB"; got != want {
		t.Errorf("Currency() = %q, want %q", got, want)
	}
	if gotBase != "USD" || gotSymbols != "RUB,EUR" {
		t.Errorf("query base %q symbols %q", gotBase, gotSymbols)
	}

	got, err = c.Currency(context.Background(), "xxx", "eur, rub")
	if err != nil {
		t.Fatalf("Currency() error = %v", err)
	}
	if got != "N/A" || gotSymbols != "EUR,RUB" {
		t.Errorf("Currency(XXX) = %q with symbols %q", got, gotSymbols)
	}
}
