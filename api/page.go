package api

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"videoquery/media"
	"videoquery/workflow"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in model output is dropped by goldmark's default (non-unsafe) renderer.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type pageData struct {
	Mode       string
	URL        string
	Query      string
	Extensions string
	Info       string
	Warning    string
	Error      string
	Result     template.HTML
}

func (h *Handler) page(mode string) pageData {
	if mode != modeUpload {
		mode = modeURL
	}
	data := pageData{Mode: mode, Extensions: media.Extensions()}
	if mode == modeUpload {
		data.Info = msgNoUpload
	} else {
		data.Info = msgNoURL
	}
	return data
}

func (h *Handler) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.page(c.Query("mode")))
}

// handleAnalyzePage runs one analysis for the form and renders the page with
// the outcome: result, inline error, warning, or a hint about missing input.
func (h *Handler) handleAnalyzePage(c *gin.Context) {
	req, p := h.bindAnalysis(c)
	data := h.page(req.Mode)
	data.URL, data.Query = req.URL, req.Query
	if p == nil {
		data.Info = ""
		var src workflow.Source
		src, p = h.materialize(c, req)
		if p == nil {
			h.renderResult(c, data, src, req.Query)
			return
		}
	}

	switch p.level {
	case "info":
	case "warning":
		data.Info = ""
		data.Warning = p.msg
	default:
		data.Info = ""
		data.Error = p.msg
	}
	c.HTML(p.status, "index.html", data)
}

func (h *Handler) renderResult(c *gin.Context, data pageData, src workflow.Source, query string) {
	res, err := h.analyzer.Analyze(c.Request.Context(), src, query)
	if err != nil {
		slog.Warn("analysis failed", slog.Any("error", err))
		data.Error = workflow.ErrorMessage(err)
		c.HTML(http.StatusBadGateway, "index.html", data)
		return
	}

	rendered, err := renderMarkdown(res.Content)
	if err != nil {
		slog.Warn("could not render markdown, showing plain text", slog.Any("error", err))
		rendered = "<pre>" + template.HTML(template.HTMLEscapeString(res.Content)) + "</pre>"
	}
	data.Result = rendered
	c.HTML(http.StatusOK, "index.html", data)
}

func renderMarkdown(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
