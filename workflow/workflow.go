// Package workflow runs one video question end to end: upload and wait for
// a local video (or take a URL as is), build the prompt, ask the agent, and
// clean up the temporary file.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"videoquery/agent"
	"videoquery/media"
)

var (
	ErrEmptyQuery        = errors.New("query must not be empty")
	ErrPollTimeout       = errors.New("timed out waiting for video processing")
	ErrAssetFailed       = errors.New("video processing failed")
	ErrUploadUnsupported = errors.New("the configured agent cannot analyze uploaded videos")
)

type Kind string

const (
	KindLocal Kind = "local"
	KindURL   Kind = "url"
)

// Source references the video a question is about.
type Source struct {
	Kind Kind   `json:"kind"`
	Path string `json:"-"`
	URL  string `json:"url,omitempty"`
}

func LocalFile(path string) Source { return Source{Kind: KindLocal, Path: path} }
func RemoteURL(url string) Source  { return Source{Kind: KindURL, URL: url} }

type Options struct {
	PollInterval time.Duration
	// PollTimeout bounds the wait for an upload to leave PROCESSING. Zero means no bound
	// beyond the caller's context.
	PollTimeout time.Duration
}

type Workflow struct {
	agent        agent.Agent
	files        agent.FileStore
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// New builds a workflow. files may be nil when the agent backend only supports URLs.
func New(a agent.Agent, files agent.FileStore, opts Options) *Workflow {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Workflow{
		agent:        a,
		files:        files,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
	}
}

// Blank reports whether query carries no question.
func Blank(query string) bool {
	return strings.TrimSpace(query) == ""
}

// ErrorMessage is the single user-facing text for a failed analysis.
func ErrorMessage(err error) string {
	return fmt.Sprintf("An error occurred during analysis: %v", err)
}

// Analyze dispatches on the source kind.
func (w *Workflow) Analyze(ctx context.Context, src Source, query string) (*agent.Result, error) {
	switch src.Kind {
	case KindLocal:
		return w.AnalyzeLocal(ctx, src.Path, query)
	case KindURL:
		return w.AnalyzeRemote(ctx, src.URL, query)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// AnalyzeLocal uploads the video at filePath, waits for it to become ready and
// asks the agent about it. filePath is removed before returning, whatever the outcome.
func (w *Workflow) AnalyzeLocal(ctx context.Context, filePath, query string) (res *agent.Result, err error) {
	defer media.Remove(filePath)
	defer recoverInto(&err)

	if Blank(query) {
		return nil, ErrEmptyQuery
	}
	if w.files == nil {
		return nil, ErrUploadUnsupported
	}

	asset, err := w.files.Upload(ctx, filePath, media.MIMEType)
	if err != nil {
		return nil, err
	}
	defer w.deleteAsset(ctx, asset.Name)
	slog.Info("video uploaded", slog.String("asset", asset.Name), slog.String("state", string(asset.State)))

	asset, err = w.waitForActive(ctx, asset)
	if err != nil {
		return nil, err
	}

	return w.agent.Run(ctx, LocalPrompt(query), asset)
}

// AnalyzeRemote asks the agent about the video at url. The agent's tools fetch it.
func (w *Workflow) AnalyzeRemote(ctx context.Context, url, query string) (res *agent.Result, err error) {
	defer recoverInto(&err)

	if Blank(query) {
		return nil, ErrEmptyQuery
	}
	return w.agent.Run(ctx, RemotePrompt(url, query))
}

// waitForActive re-fetches the asset every poll interval while it is PROCESSING.
func (w *Workflow) waitForActive(ctx context.Context, asset *agent.Asset) (*agent.Asset, error) {
	if w.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.pollTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	checks := 0
	for asset.State == agent.StateProcessing {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %d status checks", ErrPollTimeout, checks)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}

		next, err := w.files.Get(ctx, asset.Name)
		if err != nil {
			return nil, err
		}
		checks++
		asset = next
	}

	slog.Debug("video ready", slog.String("asset", asset.Name), slog.Int("checks", checks), slog.String("state", string(asset.State)))
	if asset.State != agent.StateActive {
		if asset.Error != "" {
			return nil, fmt.Errorf("%w: %s (state %s)", ErrAssetFailed, asset.Error, asset.State)
		}
		return nil, fmt.Errorf("%w (state %s)", ErrAssetFailed, asset.State)
	}
	return asset, nil
}

// deleteAsset removes the provider copy of an upload, best-effort. It runs on
// its own deadline so a canceled request still cleans up.
func (w *Workflow) deleteAsset(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.files.Delete(ctx, name); err != nil {
		slog.Warn("could not delete uploaded asset", slog.String("asset", name), slog.Any("error", err))
	}
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		slog.Error("analysis panicked", slog.Any("panic", r))
		*err = fmt.Errorf("internal error: %v", r)
	}
}
