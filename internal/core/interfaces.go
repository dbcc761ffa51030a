// Package core defines the core interfaces and types for the generation gateway.
package core

import "context"

// Provider is the capability contract every vendor adapter satisfies.
// Implementations hold no per-request state and are safe for concurrent use.
type Provider interface {
	// Name identifies the vendor for diagnostics
	Name() string

	// DefaultModel is the model used when a request carries no override
	DefaultModel() string

	// GenerateCompletion executes a text completion request
	GenerateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// GenerateImage executes an image generation request.
	// Adapters without image support return a capability_unsupported error.
	GenerateImage(ctx context.Context, req *ImageGenerationRequest) (*ImageGenerationResponse, error)

	// SupportsImageGeneration reports whether GenerateImage can succeed
	SupportsImageGeneration() bool
}

// ProviderResolver hands out adapters by model identifier.
// It is implemented by providers.Gateway.
type ProviderResolver interface {
	ProviderForModel(model string) (Provider, error)
	TextProvider() (Provider, error)
	ImageProvider() (Provider, error)
}
