package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the Gemini API endpoint. Empty uses the SDK default.
	BaseURL string
	Model   string
	// Searcher backs the duckduckgo_search function tool. Nil disables it.
	Searcher Searcher
	// GoogleSearch enables Gemini's native search grounding instead of the function tool.
	GoogleSearch  bool
	MaxToolRounds int
}

// Gemini runs prompts against a Gemini model through the genai SDK.
type Gemini struct {
	client        *genai.Client
	model         string
	tools         toolbox
	googleSearch  bool
	maxToolRounds int
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing Gemini API key: set GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{
		client:        client,
		model:         cfg.Model,
		tools:         toolbox{searcher: cfg.Searcher},
		googleSearch:  cfg.GoogleSearch,
		maxToolRounds: cfg.MaxToolRounds,
	}, nil
}

// Files returns the Gemini Files API as a FileStore.
func (g *Gemini) Files() *GeminiFiles {
	return &GeminiFiles{files: g.client.Files}
}

func (g *Gemini) Run(ctx context.Context, prompt string, videos ...*Asset) (*Result, error) {
	parts := make([]*genai.Part, 0, len(videos)+1)
	for _, v := range videos {
		parts = append(parts, genai.NewPartFromURI(v.URI, v.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := g.generateConfig()
	toolCalls := 0
	for round := 0; ; round++ {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini generate content: %w", err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Text()
			if text == "" {
				return nil, ErrEmptyResponse
			}
			return &Result{Content: text, Model: g.model, ToolCalls: toolCalls}, nil
		}
		if round >= g.maxToolRounds {
			return nil, ErrToolRounds
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return nil, ErrEmptyResponse
		}

		contents = append(contents, resp.Candidates[0].Content)
		replies := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			toolCalls++
			part := genai.NewPartFromFunctionResponse(call.Name, g.tools.call(ctx, call.Name, call.Args))
			part.FunctionResponse.ID = call.ID
			replies = append(replies, part)
		}
		contents = append(contents, genai.NewContentFromParts(replies, genai.RoleUser))
		slog.Debug("gemini tool round", slog.Int("round", round+1), slog.Int("calls", len(calls)))
	}
}

func (g *Gemini) generateConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	switch {
	case g.googleSearch:
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case g.tools.searcher != nil:
		config.Tools = []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{searchDeclaration()}}}
	}
	return config
}

func searchDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        searchToolName,
		Description: searchToolDescription,
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {
					Type:        genai.TypeString,
					Description: "The search query.",
				},
			},
			Required: []string{"query"},
		},
	}
}

// GeminiFiles adapts the Gemini Files API to FileStore.
type GeminiFiles struct {
	files *genai.Files
}

func (f *GeminiFiles) Upload(ctx context.Context, path, mimeType string) (*Asset, error) {
	file, err := f.files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}
	return assetFromFile(file), nil
}

func (f *GeminiFiles) Get(ctx context.Context, name string) (*Asset, error) {
	file, err := f.files.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", name, err)
	}
	return assetFromFile(file), nil
}

func (f *GeminiFiles) Delete(ctx context.Context, name string) error {
	if _, err := f.files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("delete file %s: %w", name, err)
	}
	return nil
}

func assetFromFile(file *genai.File) *Asset {
	a := &Asset{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		State:    AssetState(file.State),
	}
	if a.State == "" {
		a.State = StateUnspecified
	}
	if file.Error != nil {
		a.Error = file.Error.Message
	}
	return a
}
