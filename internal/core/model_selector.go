package core

import "strings"

// ModelSelector is a model identifier split into an optional vendor qualifier
// and the raw upstream model ID.
type ModelSelector struct {
	Model  string
	Vendor string
}

// Qualified returns "vendor/model" when Vendor is set, or only the model otherwise.
func (s ModelSelector) Qualified() string {
	if s.Vendor == "" {
		return s.Model
	}
	return s.Vendor + "/" + s.Model
}

// ParseModelSelector splits a model identifier.
//
// Accepted forms:
//   - model only: "gpt-4o"
//   - model with vendor prefix: "openai/gpt-4o"
//
// A prefix with an empty side ("openai/" or "/gpt-4o") is kept verbatim as the model.
// Vendor is lowercased; Model keeps its case.
func ParseModelSelector(model string) ModelSelector {
	model = strings.TrimSpace(model)

	parts := strings.SplitN(model, "/", 2)
	if len(parts) == 2 {
		prefix := strings.TrimSpace(parts[0])
		rest := strings.TrimSpace(parts[1])
		if prefix != "" && rest != "" {
			return ModelSelector{Model: rest, Vendor: strings.ToLower(prefix)}
		}
	}
	return ModelSelector{Model: model}
}
