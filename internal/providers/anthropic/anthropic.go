// Package anthropic provides Anthropic API integration for the generation gateway.
// Anthropic serves text only; image requests fail with capability_unsupported.
package anthropic

import (
	"context"
	"net/http"

	"gengateway/internal/core"
	"gengateway/internal/httpclient"
	"gengateway/internal/llmclient"
	"gengateway/internal/providers"
)

// Registration provides factory registration for the Anthropic provider.
var Registration = providers.Registration{
	Type:  "anthropic",
	Class: providers.VendorClassSyncText,
	New:   New,
}

const (
	providerName        = "anthropic"
	defaultBaseURL      = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
	defaultModel        = "claude-3-5-haiku-latest"
	defaultMaxTokens    = 4096
)

// Provider implements the core.Provider interface for Anthropic
type Provider struct {
	client *llmclient.Client
	apiKey string
	model  string
}

// New creates a new Anthropic provider.
func New(apiKey string, opts providers.ProviderOptions) core.Provider {
	return NewWithHTTPClient(apiKey, httpclient.NewDefaultHTTPClient(), opts)
}

// NewWithHTTPClient creates a new Anthropic provider with a custom HTTP client.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, opts providers.ProviderOptions) *Provider {
	p := &Provider{apiKey: apiKey, model: opts.Model}
	if p.model == "" {
		p.model = defaultModel
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cb := opts.Resilience.CircuitBreaker
	cfg := llmclient.Config{
		ProviderName:   providerName,
		BaseURL:        baseURL,
		Retry:          opts.Resilience.Retry,
		CircuitBreaker: &cb,
		Breaker:        opts.Breaker,
		Hooks:          opts.Hooks,
	}
	p.client = llmclient.NewWithHTTPClient(httpClient, cfg, p.setHeaders)
	return p
}

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Provider) SetBaseURL(url string) {
	p.client.SetBaseURL(url)
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) DefaultModel() string { return p.model }

func (p *Provider) SupportsImageGeneration() bool { return false }

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
}

// anthropicRequest represents the Anthropic API request format
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
}

// anthropicMessage represents a message in Anthropic format
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse represents the Anthropic API response format
type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

// anthropicContent represents content in Anthropic response
type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// anthropicUsage represents token usage in Anthropic response
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// convertToAnthropicRequest converts a core.CompletionRequest to Anthropic format.
// Only the first system message becomes the system prompt.
func convertToAnthropicRequest(model string, req *core.CompletionRequest) *anthropicRequest {
	system, rest := req.SystemPrompt()
	out := &anthropicRequest{
		Model:       model,
		Messages:    make([]anthropicMessage, 0, len(rest)),
		MaxTokens:   defaultMaxTokens,
		Temperature: req.Temperature,
		System:      system,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	for _, msg := range rest {
		out.Messages = append(out.Messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// convertFromAnthropicResponse maps the first text block to a CompletionResponse.
func convertFromAnthropicResponse(model string, resp *anthropicResponse) (*core.CompletionResponse, error) {
	text, found := "", false
	for _, block := range resp.Content {
		if block.Type == "text" {
			text, found = block.Text, true
			break
		}
	}
	if !found {
		return nil, core.NewVendorAPIError(providerName, model, http.StatusBadGateway, "response contained no text content", nil)
	}

	out := &core.CompletionResponse{
		Content:      text,
		Model:        resp.Model,
		Provider:     providerName,
		FinishReason: resp.StopReason,
		Usage: &core.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	if out.Model == "" {
		out.Model = model
	}
	return out, nil
}

// GenerateCompletion sends a Messages API request to Anthropic
func (p *Provider) GenerateCompletion(ctx context.Context, req *core.CompletionRequest) (*core.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	model := req.ResolveModel(p.model)

	body := convertToAnthropicRequest(model, req)
	if len(body.Messages) == 0 {
		return nil, core.NewInvalidRequestError("at least one non-system message is required", nil)
	}

	var resp anthropicResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/messages",
		Body:     body,
		Model:    model,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return convertFromAnthropicResponse(model, &resp)
}

// GenerateImage is not supported by Anthropic
func (p *Provider) GenerateImage(_ context.Context, _ *core.ImageGenerationRequest) (*core.ImageGenerationResponse, error) {
	return nil, core.NewCapabilityUnsupportedError(providerName, p.model, "image generation")
}
