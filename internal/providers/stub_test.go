package providers

import (
	"context"

	"gengateway/internal/core"
)

// stubProvider records the options it was built with.
type stubProvider struct {
	name   string
	apiKey string
	opts   ProviderOptions
	images bool
}

func (s *stubProvider) Name() string         { return s.name }
func (s *stubProvider) DefaultModel() string { return s.opts.Model }

func (s *stubProvider) GenerateCompletion(_ context.Context, req *core.CompletionRequest) (*core.CompletionResponse, error) {
	return &core.CompletionResponse{Content: "ok", Model: req.ResolveModel(s.opts.Model), Provider: s.name}, nil
}

func (s *stubProvider) GenerateImage(_ context.Context, _ *core.ImageGenerationRequest) (*core.ImageGenerationResponse, error) {
	if !s.images {
		return nil, core.NewCapabilityUnsupportedError(s.name, s.opts.Model, "image generation")
	}
	return &core.ImageGenerationResponse{URL: "https://img.example/1.png", Model: s.opts.Model, Provider: s.name}, nil
}

func (s *stubProvider) SupportsImageGeneration() bool { return s.images }

func stubRegistration(vendor string, class VendorClass, images bool, built *int) Registration {
	return Registration{
		Type:  vendor,
		Class: class,
		New: func(apiKey string, opts ProviderOptions) core.Provider {
			if built != nil {
				*built++
			}
			return &stubProvider{name: vendor, apiKey: apiKey, opts: opts, images: images}
		},
	}
}
