package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"videoquery/search"
)

const (
	searchToolName        = "duckduckgo_search"
	searchToolDescription = "Search the web with DuckDuckGo and return the top results (title, url, snippet)."
)

// Searcher is the web search capability exposed to the model as a tool.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// toolbox runs tool calls requested by the model.
type toolbox struct {
	searcher Searcher
}

// call executes one tool invocation. Failures are reported back to the model
// as tool output instead of aborting the run.
func (tb toolbox) call(ctx context.Context, name string, args map[string]any) map[string]any {
	if name != searchToolName {
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", name)}
	}

	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return map[string]any{"error": "query argument is required"}
	}

	slog.Debug("agent web search", slog.String("query", query))
	results, err := tb.searcher.Search(ctx, query)
	if err != nil {
		slog.Warn("agent web search failed", slog.String("query", query), slog.Any("error", err))
		return map[string]any{"error": err.Error()}
	}

	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"snippet": r.Snippet,
		})
	}
	return map[string]any{"results": out}
}
