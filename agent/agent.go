// Package agent defines the external collaborators of the video query
// workflow: a multimodal Agent that answers prompts, and a FileStore that
// hosts uploaded videos while the model provider processes them.
package agent

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("agent returned an empty response")
	// ErrAttachmentsUnsupported is returned by backends that cannot read video files.
	ErrAttachmentsUnsupported = errors.New("agent backend does not accept video attachments")
	// ErrToolRounds is returned when the model keeps calling tools past the configured limit.
	ErrToolRounds = errors.New("agent exceeded the maximum number of tool rounds")
)

type AssetState string

const (
	StateUnspecified AssetState = "STATE_UNSPECIFIED"
	StateProcessing  AssetState = "PROCESSING"
	StateActive      AssetState = "ACTIVE"
	StateFailed      AssetState = "FAILED"
)

// Asset is the provider-side handle of an uploaded video.
type Asset struct {
	Name     string     `json:"name"`
	URI      string     `json:"uri"`
	MIMEType string     `json:"mimeType"`
	State    AssetState `json:"state"`
	Error    string     `json:"error,omitempty"`
}

// Result is the agent's answer.
type Result struct {
	Content   string `json:"content"`
	Model     string `json:"model,omitempty"`
	ToolCalls int    `json:"toolCalls,omitempty"`
}

// Agent answers a prompt, optionally looking at the given ready videos.
type Agent interface {
	Run(ctx context.Context, prompt string, videos ...*Asset) (*Result, error)
}

// FileStore uploads local videos to the model provider and reports their processing state.
type FileStore interface {
	Upload(ctx context.Context, path, mimeType string) (*Asset, error)
	Get(ctx context.Context, name string) (*Asset, error)
	Delete(ctx context.Context, name string) error
}

// systemPrompt mirrors the persona the summarizer agent runs with.
const systemPrompt = "You are AI Video Summarizer, an assistant that analyzes videos and answers questions about them. " +
	"Combine what you observe in the video with supplementary web research when it helps. " +
	"Use markdown to format your answers."
