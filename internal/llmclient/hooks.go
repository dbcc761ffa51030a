package llmclient

import (
	"context"
	"time"
)

// RequestInfo describes one outbound vendor HTTP call.
type RequestInfo struct {
	Provider string
	Model    string
	Method   string
	Endpoint string
}

// ResponseInfo describes the outcome of one outbound vendor HTTP call.
// StatusCode is 0 when the request failed before a response arrived.
type ResponseInfo struct {
	RequestInfo
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Hooks observe vendor HTTP traffic. Both callbacks are optional.
type Hooks struct {
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd   func(ctx context.Context, info ResponseInfo)
}

// Start invokes OnRequestStart when set and returns the context to use for the call.
func (h Hooks) Start(ctx context.Context, info RequestInfo) context.Context {
	if h.OnRequestStart == nil {
		return ctx
	}
	if next := h.OnRequestStart(ctx, info); next != nil {
		return next
	}
	return ctx
}

// End invokes OnRequestEnd when set.
func (h Hooks) End(ctx context.Context, info RequestInfo, statusCode int, started time.Time, err error) {
	if h.OnRequestEnd == nil {
		return
	}
	h.OnRequestEnd(ctx, ResponseInfo{
		RequestInfo: info,
		StatusCode:  statusCode,
		Duration:    time.Since(started),
		Err:         err,
	})
}
