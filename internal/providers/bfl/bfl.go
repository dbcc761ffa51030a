// Package bfl provides Black Forest Labs FLUX integration for the generation gateway.
// Image generation is asynchronous: a job is submitted, then polled until it settles.
package bfl

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"gengateway/internal/core"
	"gengateway/internal/httpclient"
	"gengateway/internal/jobs"
	"gengateway/internal/llmclient"
	"gengateway/internal/providers"
)

// Registration provides factory registration for the BFL provider.
var Registration = providers.Registration{
	Type:  "bfl",
	Class: providers.VendorClassAsyncImage,
	New:   New,
}

const (
	providerName       = "bfl"
	defaultBaseURL     = "https://api.bfl.ai/v1"
	defaultModel       = "flux-pro-1.1"
	defaultInterval    = 5 * time.Second
	defaultMaxAttempts = 60
)

// Provider implements the core.Provider interface for BFL
type Provider struct {
	client      *resty.Client
	model       string
	interval    time.Duration
	maxAttempts int
	hooks       llmclient.Hooks
	jobs        jobs.Store
}

// New creates a new BFL provider.
func New(apiKey string, opts providers.ProviderOptions) core.Provider {
	pollCfg := httpclient.PollConfig()
	return NewWithHTTPClient(apiKey, httpclient.NewHTTPClient(&pollCfg), opts)
}

// NewWithHTTPClient creates a new BFL provider with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, opts providers.ProviderOptions) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	p := &Provider{
		model:       opts.Model,
		interval:    opts.Async.PollInterval,
		maxAttempts: opts.Async.MaxPollAttempts,
		hooks:       opts.Hooks,
		jobs:        opts.Jobs,
	}
	if p.model == "" {
		p.model = opts.Async.Model
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if p.interval <= 0 {
		p.interval = defaultInterval
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if p.jobs == nil {
		p.jobs = jobs.NopStore{}
	}

	p.client = resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetHeader("x-key", apiKey).
		SetHeader("Accept", "application/json")
	return p
}

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Provider) SetBaseURL(url string) {
	p.client.SetBaseURL(url)
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) DefaultModel() string { return p.model }

func (p *Provider) SupportsImageGeneration() bool { return true }

// GenerateCompletion is not supported by BFL
func (p *Provider) GenerateCompletion(_ context.Context, _ *core.CompletionRequest) (*core.CompletionResponse, error) {
	return nil, core.NewCapabilityUnsupportedError(providerName, p.model, "text completion")
}

type submitRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

// submission is the accepted job returned by the submit call.
type submission struct {
	ID         string
	PollingURL string
}

// GenerateImage submits a job and polls it until it reaches a terminal state.
func (p *Provider) GenerateImage(ctx context.Context, req *core.ImageGenerationRequest) (*core.ImageGenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, requestID := core.EnsureRequestID(ctx)

	sub, err := p.submit(ctx, &submitRequest{
		Prompt:      req.Prompt,
		AspectRatio: AspectRatio(req.Size),
	}, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &jobs.Job{
		ID:          sub.ID,
		Provider:    providerName,
		Model:       p.model,
		RequestID:   requestID,
		PollingURL:  sub.PollingURL,
		State:       jobs.StateSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	p.record(ctx, job)

	slog.Info("bfl job submitted",
		"job_id", sub.ID,
		"model", p.model,
		"request_id", requestID,
	)

	pl := &poller{
		provider:    p,
		job:         job,
		interval:    p.interval,
		maxAttempts: p.maxAttempts,
	}
	sample, err := pl.run(ctx)
	if err != nil {
		return nil, err
	}

	return &core.ImageGenerationResponse{
		URL:      sample,
		Model:    p.model,
		Provider: providerName,
	}, nil
}

// submit posts the job. A 429 is returned as a rate limit error and never retried here.
func (p *Provider) submit(ctx context.Context, body *submitRequest, requestID string) (*submission, error) {
	endpoint := "/" + p.model
	info := llmclient.RequestInfo{
		Provider: providerName,
		Model:    p.model,
		Method:   http.MethodPost,
		Endpoint: endpoint,
	}
	ctx = p.hooks.Start(ctx, info)
	started := time.Now()

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		gwErr := core.NewVendorAPIError(providerName, p.model, http.StatusBadGateway, "failed to submit job: "+err.Error(), err)
		p.hooks.End(ctx, info, 0, started, gwErr)
		return nil, gwErr
	}

	if !resp.IsSuccess() {
		gwErr := core.ParseProviderError(providerName, p.model, resp.StatusCode(), resp.Body(), nil)
		p.hooks.End(ctx, info, resp.StatusCode(), started, gwErr)
		return nil, gwErr
	}

	parsed := gjson.ParseBytes(resp.Body())
	sub := &submission{
		ID:         parsed.Get("id").String(),
		PollingURL: parsed.Get("polling_url").String(),
	}
	if sub.ID == "" {
		gwErr := core.NewVendorAPIError(providerName, p.model, http.StatusBadGateway, "submission response contained no job id", nil)
		p.hooks.End(ctx, info, resp.StatusCode(), started, gwErr)
		return nil, gwErr
	}

	p.hooks.End(ctx, info, resp.StatusCode(), started, nil)
	return sub, nil
}

// record writes job to the journal. Journal failures never fail the request.
func (p *Provider) record(ctx context.Context, job *jobs.Job) {
	job.UpdatedAt = time.Now().UTC()
	if err := p.jobs.Save(context.WithoutCancel(ctx), job); err != nil {
		slog.Warn("failed to record bfl job", "job_id", job.ID, "state", job.State, "error", err)
	}
}
