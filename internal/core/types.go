package core

import "fmt"

// Message roles accepted in a CompletionRequest.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is the vendor-neutral text completion request.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	// Model overrides the adapter's default model when set.
	Model string `json:"model,omitempty"`
}

// Message represents a single message in the conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks the request shape before any vendor call is made.
func (r *CompletionRequest) Validate() error {
	if r == nil || len(r.Messages) == 0 {
		return NewInvalidRequestError("messages must not be empty", nil)
	}
	for i, msg := range r.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return NewInvalidRequestError(fmt.Sprintf("messages[%d]: unsupported role %q", i, msg.Role), nil)
		}
	}
	return nil
}

// ResolveModel returns the request override or the given fallback.
func (r *CompletionRequest) ResolveModel(fallback string) string {
	if r.Model != "" {
		return r.Model
	}
	return fallback
}

// SystemPrompt returns the first system message and the remaining
// non-system messages. Later system messages are dropped.
func (r *CompletionRequest) SystemPrompt() (string, []Message) {
	var (
		system string
		found  bool
	)
	rest := make([]Message, 0, len(r.Messages))
	for _, msg := range r.Messages {
		if msg.Role == RoleSystem {
			if !found {
				system = msg.Content
				found = true
			}
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}

// CompletionResponse is the normalized completion result.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Usage        *Usage `json:"usage,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ImageGenerationRequest is the vendor-neutral image request.
type ImageGenerationRequest struct {
	Prompt string `json:"prompt"`
	// Size is a pixel hint in "WxH" form. Vendors translate it to their own vocabulary.
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

// Validate checks the request shape before any vendor call is made.
func (r *ImageGenerationRequest) Validate() error {
	if r == nil || r.Prompt == "" {
		return NewInvalidRequestError("prompt must not be empty", nil)
	}
	return nil
}

// ImageGenerationResponse carries a vendor-hosted image URL.
// Callers are responsible for persisting the image.
type ImageGenerationResponse struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Model         string `json:"model"`
	Provider      string `json:"provider"`
}
