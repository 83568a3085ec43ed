// Package search implements the web search tool the agent uses for
// supplementary research.
package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://html.duckduckgo.com/html/"
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Config struct {
	Endpoint   string
	Region     string
	MaxResults int
	// RatePerSecond limits outgoing searches. Zero or less disables the limit.
	RatePerSecond float64
	HTTPClient    *http.Client
}

// DuckDuckGo queries the DuckDuckGo HTML lite endpoint.
type DuckDuckGo struct {
	endpoint   string
	region     string
	maxResults int
	limiter    *rate.Limiter
	client     *http.Client
}

func NewDuckDuckGo(cfg Config) *DuckDuckGo {
	d := &DuckDuckGo{
		endpoint:   cfg.Endpoint,
		region:     cfg.Region,
		maxResults: cfg.MaxResults,
		client:     cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	if d.endpoint == "" {
		d.endpoint = DefaultEndpoint
	}
	if d.region == "" {
		d.region = "wt-wt"
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return d
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ddg rate limit: %w", err)
	}

	form := url.Values{"q": {query}, "kl": {d.region}, "df": {""}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://html.duckduckgo.com/")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ddg request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ddg html status %d", resp.StatusCode)
	}

	results, err := parseHTML(resp.Body, d.maxResults)
	if err != nil {
		return nil, err
	}
	slog.Debug("ddg results", slog.String("query", query), slog.Int("count", len(results)))
	return results, nil
}

// parseHTML collects up to limit organic results from a DDG HTML lite page,
// in page order and without duplicate URLs. A limit of zero or less keeps all.
func parseHTML(r io.Reader, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("goquery parse: %w", err)
	}

	var results []Result
	seen := make(map[string]bool)
	doc.Find(".result, .web-result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a, .result__title a, a.result-link").First()
		title := collapseSpace(link.Text())
		target, ok := resultURL(link.AttrOr("href", ""))
		if !ok || title == "" || seen[target] {
			return true
		}
		seen[target] = true

		results = append(results, Result{
			Title:   title,
			URL:     target,
			Snippet: collapseSpace(s.Find(".result__snippet, .result__body").First().Text()),
		})
		return limit <= 0 || len(results) < limit
	})
	return results, nil
}

// resultURL returns the page a result link points at. Links through the
// /l/ redirector carry it in the uddg parameter; links that stay on
// duckduckgo.com (ad clicks, settings) and non-web schemes are rejected.
func resultURL(href string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if target := u.Query().Get("uddg"); target != "" {
		if u, err = url.Parse(target); err != nil {
			return "", false
		}
	}
	if u.Scheme == "" && u.Host != "" {
		u.Scheme = "https"
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	if host := u.Hostname(); host == "duckduckgo.com" || strings.HasSuffix(host, ".duckduckgo.com") {
		return "", false
	}
	return u.String(), true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
