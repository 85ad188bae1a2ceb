package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/pkg/anthropic"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// Anthropic generates text with the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic generator.
func NewAnthropic(opts Options) *Anthropic {
	client := anthropic.NewClient(opts.APIKey,
		anthropic.WithBaseURL(opts.BaseURL),
		anthropic.WithTimeout(opts.Timeout),
	)
	return NewAnthropicWithClient(client, opts.Model)
}

// NewAnthropicWithClient wraps an existing client.
func NewAnthropicWithClient(client anthropic.Client, modelID string) *Anthropic {
	if modelID == "" {
		modelID = DefaultAnthropicModel
	}
	return &Anthropic{client: client, model: modelID}
}

// Name implements Generator.
func (a *Anthropic) Name() string { return ProviderAnthropic }

// Generate implements Generator.
func (a *Anthropic) Generate(ctx context.Context, req Request) (*Response, error) {
	temp := req.Temperature
	msgReq := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   int64(req.MaxTokens),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.System != "" {
		msgReq.System = []anthropic.SystemBlock{{
			Text:         req.System,
			CacheControl: &anthropic.CacheControl{TTL: "5m"},
		}}
	}

	resp, err := a.client.CreateMessage(ctx, msgReq)
	if err != nil {
		return nil, &ServiceError{
			Provider:   ProviderAnthropic,
			StatusCode: anthropic.StatusCode(err),
			Err:        err,
		}
	}
	if resp == nil {
		return nil, &ServiceError{Provider: ProviderAnthropic, Err: eris.New("empty response")}
	}
	resp.Usage.LogCost(a.model, "generate")

	return &Response{
		Text:  resp.Text(),
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
