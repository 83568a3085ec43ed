package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

type OpenAIConfig struct {
	APIKey string
	// BaseURL points the client at an OpenAI-compatible endpoint. Empty uses api.openai.com.
	BaseURL       string
	Model         string
	Searcher      Searcher
	MaxToolRounds int
}

// OpenAI answers URL-mode questions through the chat completions API. It
// cannot look at uploaded videos; the model relies on the URL and web search.
type OpenAI struct {
	client        *openai.Client
	model         string
	tools         toolbox
	maxToolRounds int
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key: set OPENAI_API_KEY")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oLatest
	}
	return &OpenAI{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         model,
		tools:         toolbox{searcher: cfg.Searcher},
		maxToolRounds: cfg.MaxToolRounds,
	}, nil
}

func (o *OpenAI) Run(ctx context.Context, prompt string, videos ...*Asset) (*Result, error) {
	if len(videos) > 0 {
		return nil, ErrAttachmentsUnsupported
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if o.tools.searcher != nil {
		req.Tools = []openai.Tool{searchTool()}
	}

	toolCalls := 0
	for round := 0; ; round++ {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("openai chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyResponse
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				return nil, ErrEmptyResponse
			}
			return &Result{Content: content, Model: o.model, ToolCalls: toolCalls}, nil
		}
		if round >= o.maxToolRounds {
			return nil, ErrToolRounds
		}

		req.Messages = append(req.Messages, msg)
		for _, call := range msg.ToolCalls {
			toolCalls++
			var args map[string]any
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				args = map[string]any{}
			}
			out, err := json.Marshal(o.tools.call(ctx, call.Function.Name, args))
			if err != nil {
				return nil, fmt.Errorf("encode tool output: %w", err)
			}
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(out),
				ToolCallID: call.ID,
			})
		}
	}
}

func searchTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        searchToolName,
			Description: searchToolDescription,
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {
						Type:        jsonschema.String,
						Description: "The search query.",
					},
				},
				Required: []string{"query"},
			},
		},
	}
}
