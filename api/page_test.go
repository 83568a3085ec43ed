package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"videoquery/agent"
	"videoquery/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readyFiles reports every upload as ACTIVE straight away.
type readyFiles struct {
	uploaded string
}

func (f *readyFiles) Upload(ctx context.Context, path, mimeType string) (*agent.Asset, error) {
	f.uploaded = path
	return &agent.Asset{Name: "files/page", URI: "https://files.example/page", MIMEType: mimeType, State: agent.StateActive}, nil
}

func (f *readyFiles) Get(ctx context.Context, name string) (*agent.Asset, error) {
	return &agent.Asset{Name: name, URI: "https://files.example/page", State: agent.StateActive}, nil
}

func (f *readyFiles) Delete(ctx context.Context, name string) error { return nil }

type fixedAgent struct {
	content string
	err     error
}

func (a fixedAgent) Run(ctx context.Context, prompt string, videos ...*agent.Asset) (*agent.Result, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &agent.Result{Content: a.content}, nil
}

func TestIndex(t *testing.T) {
	router, _, _ := setupTestRouter(t, &mockAnalyzer{})

	t.Run("defaults to URL input", func(t *testing.T) {
		w := serve(router, jsonRequest(t, http.MethodGet, "/", ""))
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "AI Video Summarizer Tool")
		assert.Contains(t, body, "Please Select Input Type")
		assert.Contains(t, body, `name="url"`)
		assert.Contains(t, body, msgNoURL)
		assert.Contains(t, body, "Analyzing video and gathering insights...")
		assert.NotContains(t, body, `id="preview"`)
	})

	t.Run("upload input", func(t *testing.T) {
		w := serve(router, jsonRequest(t, http.MethodGet, "/?mode=upload", ""))
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `type="file"`)
		assert.Contains(t, body, `accept=".mp4,.mov,.avi"`)
		assert.Contains(t, body, msgNoUpload)
		assert.Contains(t, body, `<video id="preview" controls>`)
		assert.Contains(t, body, "Processing video and gathering insights...")
	})
}

func TestAnalyzePage_URL(t *testing.T) {
	analyzer := &mockAnalyzer{}
	router, _, _ := setupTestRouter(t, analyzer)

	w := serve(router, formRequest(t, "/analyze", url.Values{
		"mode":  {"url"},
		"url":   {"https://youtu.be/abc123"},
		"query": {"What is the main claim?"},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Results of Video Analysis")
	assert.Contains(t, body, "The speaker argues X.")
	assert.NotContains(t, body, msgNoURL)
	assert.Equal(t, 1, analyzer.remoteCalls)
}

func TestAnalyzePage_Markdown(t *testing.T) {
	analyzer := &mockAnalyzer{content: "## Summary\n\n**bold** point\n\n<script>alert(1)</script>"}
	router, _, _ := setupTestRouter(t, analyzer)

	w := serve(router, formRequest(t, "/analyze", url.Values{
		"url":   {"https://youtu.be/abc123"},
		"query": {"Summarize"},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<h2>Summary</h2>")
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.NotContains(t, body, "<script>alert(1)</script>")
}

func TestAnalyzePage_BlankQuery(t *testing.T) {
	t.Run("URL mode", func(t *testing.T) {
		analyzer := &mockAnalyzer{}
		router, _, _ := setupTestRouter(t, analyzer)

		w := serve(router, formRequest(t, "/analyze", url.Values{
			"mode":  {"url"},
			"url":   {"https://youtu.be/abc123"},
			"query": {"   "},
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `class="warning"`)
		assert.Contains(t, w.Body.String(), msgEmptyQuery)
		assert.Zero(t, analyzer.calls())
	})

	t.Run("upload mode writes nothing", func(t *testing.T) {
		analyzer := &mockAnalyzer{}
		router, cfg, _ := setupTestRouter(t, analyzer)

		w := serve(router, multipartRequest(t, "/analyze",
			map[string]string{"mode": "upload", "query": ""}, "clip.mp4", []byte("video")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), msgEmptyQuery)
		assert.Zero(t, analyzer.calls())
		assert.Zero(t, dirEntries(t, cfg.TempDir))
	})
}

func TestAnalyzePage_MissingInput(t *testing.T) {
	analyzer := &mockAnalyzer{}
	router, _, _ := setupTestRouter(t, analyzer)

	w := serve(router, formRequest(t, "/analyze", url.Values{"mode": {"url"}, "query": {"q"}}))
	assert.Contains(t, w.Body.String(), msgNoURL)

	w = serve(router, multipartRequest(t, "/analyze", map[string]string{"mode": "upload", "query": "q"}, "", nil))
	assert.Contains(t, w.Body.String(), msgNoUpload)

	assert.Zero(t, analyzer.calls())
}

func TestAnalyzePage_UnsupportedExtension(t *testing.T) {
	analyzer := &mockAnalyzer{}
	router, cfg, _ := setupTestRouter(t, analyzer)

	w := serve(router, multipartRequest(t, "/analyze",
		map[string]string{"mode": "upload", "query": "q"}, "notes.txt", []byte("text")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `class="error"`)
	assert.Zero(t, analyzer.calls())
	assert.Zero(t, dirEntries(t, cfg.TempDir))
}

func TestAnalyzePage_AgentError(t *testing.T) {
	analyzer := &mockAnalyzer{err: errors.New("boom")}
	router, _, _ := setupTestRouter(t, analyzer)

	w := serve(router, formRequest(t, "/analyze", url.Values{
		"url":   {"https://youtu.be/abc123"},
		"query": {"q"},
	}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "An error occurred during analysis: boom")
	assert.NotContains(t, w.Body.String(), "Results of Video Analysis")
}

func TestAnalyzePage_UploadRemovesTempFile(t *testing.T) {
	for name, ag := range map[string]fixedAgent{
		"success":     {content: "A cooking demo."},
		"agent error": {err: errors.New("quota exceeded")},
	} {
		t.Run(name, func(t *testing.T) {
			files := &readyFiles{}
			wf := workflow.New(ag, files, workflow.Options{PollInterval: time.Millisecond, PollTimeout: time.Second})
			router, cfg, _ := setupTestRouter(t, wf)

			w := serve(router, multipartRequest(t, "/analyze",
				map[string]string{"mode": "upload", "query": "What is cooked?"}, "dinner.avi", []byte("video bytes")))

			if ag.err != nil {
				assert.Equal(t, http.StatusBadGateway, w.Code)
				assert.Contains(t, w.Body.String(), "quota exceeded")
			} else {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Contains(t, w.Body.String(), "A cooking demo.")
			}

			require.NotEmpty(t, files.uploaded)
			assert.Equal(t, ".mp4", files.uploaded[len(files.uploaded)-4:])
			_, err := os.Stat(files.uploaded)
			assert.True(t, os.IsNotExist(err), "temp file must be removed after analysis")
			assert.Zero(t, dirEntries(t, cfg.TempDir))
		})
	}
}
