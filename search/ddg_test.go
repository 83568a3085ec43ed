package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&rut=abc">Documentation - The Go Programming Language</a></h2>
  <a class="result__snippet" href="#">The Go programming language is an open source project.</a>
</div>
<div class="result result--ad web-result">
  <h2 class="result__title"><a class="result__a" href="https://ads.example.com">Sponsored</a></h2>
</div>
<div class="result web-result">
  <h2 class="result__title"><a class="result__a" href="https://example.com/direct">Direct link</a></h2>
  <div class="result__snippet">Plain snippet</div>
</div>
<div class="result web-result">
  <h2 class="result__title"><a class="result__a" href="/relative">Relative</a></h2>
</div>
<div class="result web-result">
  <h2 class="result__title"><a class="result__a" href="https://example.com/untitled"></a></h2>
</div>
<div class="result web-result">
  <h2 class="result__title"><a class="result__a" href="https://duckduckgo.com/y.js?ad_domain=shop.example">Tracked ad</a></h2>
</div>
<div class="result web-result">
  <h2 class="result__title"><a class="result__a" href="https://example.com/direct">Direct link again</a></h2>
</div>
<div class="result web-result">
  <h2 class="result__title"><a class="result__a" href="//example.net/tour">
    A   Tour
  </a></h2>
  <div class="result__body">Learn
     by   example</div>
</div>
</body></html>`

func TestParseHTML(t *testing.T) {
	results, err := parseHTML(strings.NewReader(resultsPage), 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Documentation - The Go Programming Language", results[0].Title)
	assert.Equal(t, "https://go.dev/doc/", results[0].URL)
	assert.Equal(t, "The Go programming language is an open source project.", results[0].Snippet)
	assert.Equal(t, "https://example.com/direct", results[1].URL)
	assert.Equal(t, "Plain snippet", results[1].Snippet)
	assert.Equal(t, Result{Title: "A Tour", URL: "https://example.net/tour", Snippet: "Learn by example"}, results[2])

	limited, err := parseHTML(strings.NewReader(resultsPage), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestResultURL(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
		ok   bool
	}{
		{"redirect", "//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com&rut=x", "https://example.com", true},
		{"direct", "https://example.org/page", "https://example.org/page", true},
		{"protocol relative", "//example.org/a?b=1", "https://example.org/a?b=1", true},
		{"relative", "/settings", "", false},
		{"ad click", "https://duckduckgo.com/y.js?ad_domain=x", "", false},
		{"redirect to ftp", "//duckduckgo.com/l/?uddg=ftp%3A%2F%2Fexample.com", "", false},
		{"javascript", "javascript:void(0)", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resultURL(tt.href)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "golang docs", r.PostForm.Get("q"))
		assert.Equal(t, "wt-wt", r.PostForm.Get("kl"))
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(Config{Endpoint: srv.URL, MaxResults: 1})
	results, err := d.Search(context.Background(), "golang docs")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev/doc/", results[0].URL)
}

func TestDuckDuckGoSearchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewDuckDuckGo(Config{Endpoint: srv.URL}).Search(context.Background(), "q")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ddg html status 403")
}

func TestDuckDuckGoRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	// One token per hour: the second search cannot get a token before the deadline.
	d := NewDuckDuckGo(Config{Endpoint: srv.URL, RatePerSecond: 1.0 / 3600})
	_, err := d.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = d.Search(ctx, "second")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ddg rate limit")
}
