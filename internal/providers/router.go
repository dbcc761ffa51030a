// Package providers routes model identifiers to vendor adapters and caches the adapters.
package providers

import (
	"log/slog"
	"strings"

	"gengateway/internal/core"
)

// VendorClass identifies which protocol shape serves a model.
type VendorClass int

const (
	// VendorClassSyncText is a synchronous, text-only vendor.
	VendorClassSyncText VendorClass = iota
	// VendorClassSyncTextImage is a synchronous vendor serving text and images.
	VendorClassSyncTextImage
	// VendorClassAsyncImage is an image-only vendor with submit-then-poll jobs.
	VendorClassAsyncImage
)

// DefaultVendorClass is returned for identifiers the router does not recognise.
const DefaultVendorClass = VendorClassSyncText

func (c VendorClass) String() string {
	switch c {
	case VendorClassSyncText:
		return "sync-text"
	case VendorClassSyncTextImage:
		return "sync-text-image"
	case VendorClassAsyncImage:
		return "async-image"
	default:
		return "unknown"
	}
}

// modelTable pins well-known identifiers to their class.
var modelTable = map[string]VendorClass{
	"gpt-4o":                     VendorClassSyncTextImage,
	"gpt-4o-mini":                VendorClassSyncTextImage,
	"gpt-4.1":                    VendorClassSyncTextImage,
	"gpt-4.1-mini":               VendorClassSyncTextImage,
	"gpt-4-turbo":                VendorClassSyncTextImage,
	"gpt-image-1":                VendorClassSyncTextImage,
	"dall-e-2":                   VendorClassSyncTextImage,
	"dall-e-3":                   VendorClassSyncTextImage,
	"claude-3-5-sonnet-latest":   VendorClassSyncText,
	"claude-3-5-haiku-latest":    VendorClassSyncText,
	"claude-3-7-sonnet-latest":   VendorClassSyncText,
	"claude-3-opus-latest":       VendorClassSyncText,
	"claude-sonnet-4-0":          VendorClassSyncText,
	"claude-opus-4-0":            VendorClassSyncText,
	"flux-pro":                   VendorClassAsyncImage,
	"flux-pro-1.1":               VendorClassAsyncImage,
	"flux-pro-1.1-ultra":         VendorClassAsyncImage,
	"flux-dev":                   VendorClassAsyncImage,
	"flux-kontext-pro":           VendorClassAsyncImage,
	"flux-kontext-max":           VendorClassAsyncImage,
	"flux-pro-1.0-fill":          VendorClassAsyncImage,
	"flux-pro-1.0-canny":         VendorClassAsyncImage,
	"flux-pro-1.0-depth":         VendorClassAsyncImage,
	"flux-pro-1.0-expand":        VendorClassAsyncImage,
	"chatgpt-4o-latest":          VendorClassSyncTextImage,
	"o1":                         VendorClassSyncTextImage,
	"o3-mini":                    VendorClassSyncTextImage,
	"o4-mini":                    VendorClassSyncTextImage,
	"claude-3-haiku-20240307":    VendorClassSyncText,
	"claude-3-5-sonnet-20241022": VendorClassSyncText,
}

// vendorSelectors maps the qualifier of a "vendor/model" identifier to a class.
var vendorSelectors = map[string]VendorClass{
	"openai":    VendorClassSyncTextImage,
	"anthropic": VendorClassSyncText,
	"bfl":       VendorClassAsyncImage,
}

// prefixRules are checked in order; the first match wins.
var prefixRules = []struct {
	prefix string
	class  VendorClass
}{
	{"gpt-", VendorClassSyncTextImage},
	{"chatgpt-", VendorClassSyncTextImage},
	{"dall-e", VendorClassSyncTextImage},
	{"o1", VendorClassSyncTextImage},
	{"o3", VendorClassSyncTextImage},
	{"o4", VendorClassSyncTextImage},
	{"claude", VendorClassSyncText},
	{"flux", VendorClassAsyncImage},
}

// Route maps a model identifier to the vendor class able to serve it.
// Unknown identifiers fall back to DefaultVendorClass with a warning.
func Route(model string) VendorClass {
	class, ok := lookup(model)
	if !ok {
		slog.Warn("unrecognised model, using default vendor class",
			"model", model,
			"class", DefaultVendorClass.String(),
		)
		return DefaultVendorClass
	}
	return class
}

// lookup resolves a class without the default fallback.
func lookup(model string) (VendorClass, bool) {
	if class, ok := modelTable[model]; ok {
		return class, true
	}

	if sel := core.ParseModelSelector(model); sel.Vendor != "" {
		if class, ok := vendorSelectors[sel.Vendor]; ok {
			return class, true
		}
	}

	lower := strings.ToLower(strings.TrimSpace(model))
	for _, rule := range prefixRules {
		if strings.HasPrefix(lower, rule.prefix) {
			return rule.class, true
		}
	}
	return DefaultVendorClass, false
}

// upstreamModel strips a known vendor qualifier so adapters receive the raw model ID.
func upstreamModel(model string) string {
	sel := core.ParseModelSelector(model)
	if _, ok := vendorSelectors[sel.Vendor]; ok {
		return sel.Model
	}
	return model
}
