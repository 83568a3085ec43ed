package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"videoquery/agent"
	"videoquery/config"
	"videoquery/media"
	"videoquery/task"
	"videoquery/workflow"

	"github.com/gin-gonic/gin"
)

const (
	modeUpload = "upload"
	modeURL    = "url"

	msgEmptyQuery = "Please enter a question or insight to analyze the video."
	msgNoUpload   = "Upload a video file to begin analysis."
	msgNoURL      = "Enter a YouTube video URL to begin analysis."

	// Room for the multipart envelope and the text fields around the video.
	formOverhead = 1 << 20
)

// Analyzer answers a question about a video within the request. The page and
// /call use it directly; tasks go through the task manager instead.
type Analyzer interface {
	Analyze(ctx context.Context, src workflow.Source, query string) (*agent.Result, error)
}

type Handler struct {
	analyzer    Analyzer
	taskManager *task.Manager
	cfg         *config.Config
}

func NewHandler(analyzer Analyzer, tm *task.Manager, cfg *config.Config) *Handler {
	return &Handler{
		analyzer:    analyzer,
		taskManager: tm,
		cfg:         cfg,
	}
}

// AnalyzeRequest carries the text fields of both the form and the JSON API.
// The video itself travels as the multipart file field "video".
type AnalyzeRequest struct {
	Mode  string `json:"mode" form:"mode"`
	URL   string `json:"url" form:"url"`
	Query string `json:"query" form:"query"`
}

// problem is a request that cannot reach the workflow. Level picks how the
// page shows it: "info", "warning" or "error".
type problem struct {
	status int
	level  string
	msg    string
}

func (p *problem) Error() string { return p.msg }

func infoProblem(msg string) *problem    { return &problem{http.StatusBadRequest, "info", msg} }
func warningProblem(msg string) *problem { return &problem{http.StatusBadRequest, "warning", msg} }
func errorProblem(status int, msg string) *problem {
	return &problem{status, "error", msg}
}

// bindAnalysis validates the request in the order the page asks for input:
// the video first, then the question. Nothing is written to disk here.
func (h *Handler) bindAnalysis(c *gin.Context) (AnalyzeRequest, *problem) {
	if h.cfg.MaxInputSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxInputSize+formOverhead)
	}

	var req AnalyzeRequest
	if err := c.ShouldBind(&req); err != nil {
		return req, errorProblem(http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
	}
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	req.URL = strings.TrimSpace(req.URL)
	if req.Mode == "" {
		req.Mode = modeURL
		if _, err := c.FormFile("video"); err == nil {
			req.Mode = modeUpload
		}
	}

	switch req.Mode {
	case modeURL:
		if req.URL == "" {
			return req, infoProblem(msgNoURL)
		}
	case modeUpload:
		fh, err := c.FormFile("video")
		if err != nil {
			return req, infoProblem(msgNoUpload)
		}
		if !media.AllowedExtension(fh.Filename) {
			return req, errorProblem(http.StatusBadRequest,
				fmt.Sprintf("Unsupported file type %q: upload a .mp4, .mov or .avi video.", fh.Filename))
		}
	default:
		return req, errorProblem(http.StatusBadRequest, fmt.Sprintf("Unknown input type %q", req.Mode))
	}

	if workflow.Blank(req.Query) {
		return req, warningProblem(msgEmptyQuery)
	}
	return req, nil
}

// materialize turns a validated request into a workflow source, writing an
// uploaded video to a temp file. The caller owns the returned file.
func (h *Handler) materialize(c *gin.Context, req AnalyzeRequest) (workflow.Source, *problem) {
	if req.Mode == modeURL {
		return workflow.RemoteURL(req.URL), nil
	}

	limits := media.Limits{IdleCPU: h.cfg.ThrottleCPU, FreeMem: h.cfg.ThrottleFreeMem, FreeDisk: h.cfg.ThrottleFreeDisk}
	if err := media.CheckResources(h.cfg.TempDir, limits); err != nil {
		return workflow.Source{}, errorProblem(http.StatusServiceUnavailable, fmt.Sprintf("Insufficient system resources: %v", err))
	}

	fh, err := c.FormFile("video")
	if err != nil {
		return workflow.Source{}, infoProblem(msgNoUpload)
	}
	f, err := fh.Open()
	if err != nil {
		return workflow.Source{}, errorProblem(http.StatusBadRequest, fmt.Sprintf("Could not read upload: %v", err))
	}
	defer f.Close()

	path, err := media.SaveUpload(h.cfg.TempDir, f, h.cfg.MaxInputSize)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			return workflow.Source{}, errorProblem(http.StatusRequestEntityTooLarge, err.Error())
		}
		slog.Error("could not store upload", slog.Any("error", err))
		return workflow.Source{}, errorProblem(http.StatusInternalServerError, "Could not store the uploaded video")
	}
	slog.Debug("upload stored", slog.String("path", path), slog.String("filename", fh.Filename))
	return workflow.LocalFile(path), nil
}

// handleSyncCall answers a question within the request.
func (h *Handler) handleSyncCall(c *gin.Context) {
	req, p := h.bindAnalysis(c)
	if p != nil {
		c.JSON(p.status, gin.H{"error": p.msg})
		return
	}
	src, p := h.materialize(c, req)
	if p != nil {
		c.JSON(p.status, gin.H{"error": p.msg})
		return
	}

	res, err := h.analyzer.Analyze(c.Request.Context(), src, req.Query)
	if err != nil {
		slog.Warn("analysis failed", slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": workflow.ErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleCreateTask handles asynchronous task creation.
func (h *Handler) handleCreateTask(c *gin.Context) {
	req, p := h.bindAnalysis(c)
	if p != nil {
		c.JSON(p.status, gin.H{"error": p.msg})
		return
	}
	src, p := h.materialize(c, req)
	if p != nil {
		c.JSON(p.status, gin.H{"error": p.msg})
		return
	}

	t, err := h.taskManager.Submit(src, req.Query)
	if err != nil {
		if src.Kind == workflow.KindLocal {
			media.Remove(src.Path)
		}
		status := http.StatusInternalServerError
		if errors.Is(err, task.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "Failed to create task", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"taskId": t.ID})
}

// handleListTasks lists all tasks.
func (h *Handler) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.taskManager.List())
}

// handleGetTaskStatus retrieves the status of a single task.
func (h *Handler) handleGetTaskStatus(c *gin.Context) {
	t, found := h.taskManager.Get(c.Param("taskId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// handleCancelTask cancels a task.
func (h *Handler) handleCancelTask(c *gin.Context) {
	err := h.taskManager.Cancel(c.Param("taskId"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, task.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task cancellation requested"})
}
