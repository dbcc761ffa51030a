// Package openai provides OpenAI API integration for the generation gateway.
// It serves chat completions and synchronous image generation.
package openai

import (
	"context"
	"net/http"
	"strings"

	"gengateway/internal/core"
	"gengateway/internal/httpclient"
	"gengateway/internal/llmclient"
	"gengateway/internal/providers"
)

// Registration provides factory registration for the OpenAI provider.
var Registration = providers.Registration{
	Type:  "openai",
	Class: providers.VendorClassSyncTextImage,
	New:   New,
}

const (
	providerName      = "openai"
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-mini"
	defaultImageModel = "dall-e-3"
	defaultImageSize  = "1024x1024"
)

// Provider implements the core.Provider interface for OpenAI
type Provider struct {
	client *llmclient.Client
	apiKey string
	model  string
}

// New creates a new OpenAI provider.
func New(apiKey string, opts providers.ProviderOptions) core.Provider {
	return NewWithHTTPClient(apiKey, httpclient.NewDefaultHTTPClient(), opts)
}

// NewWithHTTPClient creates a new OpenAI provider with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
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

// Name identifies the vendor
func (p *Provider) Name() string { return providerName }

// DefaultModel returns the model used when a request has no override
func (p *Provider) DefaultModel() string { return p.model }

// SupportsImageGeneration is always true for OpenAI
func (p *Provider) SupportsImageGeneration() bool { return true }

// setHeaders sets the required headers for OpenAI API requests
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	// OpenAI rejects X-Client-Request-Id values that are not ASCII or exceed 512 bytes.
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

// isValidClientRequestID checks if the request ID is valid for OpenAI's X-Client-Request-Id header.
func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// isOSeriesModel reports whether the model is an o-series reasoning model
// (o1, o3, o4) that requires max_completion_tokens and rejects temperature.
func isOSeriesModel(model string) bool {
	m := strings.ToLower(model)
	return len(m) >= 2 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}

// isImageModel reports whether model is served by /images/generations.
func isImageModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "dall-e") || strings.HasPrefix(m, "gpt-image")
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []core.Message `json:"messages"`
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxTokens           *int           `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int           `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *core.Usage `json:"usage"`
}

// chatRequestBody builds the wire request, adapting parameters for o-series models.
func chatRequestBody(model string, req *core.CompletionRequest) *chatRequest {
	body := &chatRequest{
		Model:    model,
		Messages: req.Messages,
	}
	if isOSeriesModel(model) {
		body.MaxCompletionTokens = req.MaxTokens
		return body
	}
	body.Temperature = req.Temperature
	body.MaxTokens = req.MaxTokens
	return body
}

// GenerateCompletion sends a chat completion request to OpenAI
func (p *Provider) GenerateCompletion(ctx context.Context, req *core.CompletionRequest) (*core.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	model := req.ResolveModel(p.model)

	var resp chatResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     chatRequestBody(model, req),
		Model:    model,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, core.NewVendorAPIError(providerName, model, http.StatusBadGateway, "response contained no choices", nil)
	}

	out := &core.CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		Provider:     providerName,
		Usage:        resp.Usage,
		FinishReason: resp.Choices[0].FinishReason,
	}
	if out.Model == "" {
		out.Model = model
	}
	return out, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// imageModel picks the image model: the adapter's own model when it is one, else dall-e-3.
func (p *Provider) imageModel() string {
	if isImageModel(p.model) {
		return p.model
	}
	return defaultImageModel
}

// GenerateImage sends one image generation request to OpenAI
func (p *Provider) GenerateImage(ctx context.Context, req *core.ImageGenerationRequest) (*core.ImageGenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	model := p.imageModel()

	body := &imageRequest{
		Model:   model,
		Prompt:  req.Prompt,
		N:       1,
		Size:    req.Size,
		Quality: req.Quality,
		Style:   req.Style,
	}
	if body.Size == "" {
		body.Size = defaultImageSize
	}
	// gpt-image models always return base64 and reject response_format
	if strings.HasPrefix(strings.ToLower(model), "dall-e") {
		body.ResponseFormat = "url"
	}

	var resp imageResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/images/generations",
		Body:     body,
		Model:    model,
		// a repeated POST can render and bill a second image
		NoRetry: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, core.NewVendorAPIError(providerName, model, http.StatusBadGateway, "response contained no image url", nil)
	}

	return &core.ImageGenerationResponse{
		URL:           resp.Data[0].URL,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
		Model:         model,
		Provider:      providerName,
	}, nil
}
