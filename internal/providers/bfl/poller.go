package bfl

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"gengateway/internal/core"
	"gengateway/internal/jobs"
	"gengateway/internal/llmclient"
)

// Job statuses reported by the result endpoint.
const (
	statusPending          = "Pending"
	statusReady            = "Ready"
	statusError            = "Error"
	statusFailed           = "Failed"
	statusRequestModerated = "Request Moderated"
	statusContentModerated = "Content Moderated"
	statusTaskNotFound     = "Task not found"
)

const resultEndpoint = "/get_result"

// poller drives one job from Submitted to a terminal state.
// Pending statuses and failed polls share one attempt budget.
type poller struct {
	provider    *Provider
	job         *jobs.Job
	interval    time.Duration
	maxAttempts int
}

// run polls until the job settles, the budget is spent or ctx is done.
// It returns the sample URL of a Ready job.
func (pl *poller) run(ctx context.Context) (string, error) {
	p := pl.provider
	var lastErr error

	for attempt := 1; attempt <= pl.maxAttempts; attempt++ {
		if err := sleep(ctx, pl.interval); err != nil {
			return "", pl.finish(ctx, jobs.StateTimedOut,
				core.NewTimeoutError(providerName, p.model, "polling stopped: "+err.Error(), err))
		}

		pl.job.Polls = attempt
		pl.job.State = jobs.StatePolling

		body, err := pl.poll(ctx)
		if err != nil {
			// the caller may have gone away mid-request
			if ctx.Err() != nil {
				return "", pl.finish(ctx, jobs.StateTimedOut,
					core.NewTimeoutError(providerName, p.model, "polling stopped: "+ctx.Err().Error(), ctx.Err()))
			}
			lastErr = err
			slog.Debug("bfl poll failed", "job_id", pl.job.ID, "attempt", attempt, "error", err)
			p.record(ctx, pl.job)
			continue
		}

		result := gjson.ParseBytes(body)
		status := result.Get("status").String()

		switch status {
		case statusReady:
			sample := result.Get("result.sample").String()
			if sample == "" {
				return "", pl.finish(ctx, jobs.StateError,
					core.NewVendorAPIError(providerName, p.model, http.StatusBadGateway, "job is ready but has no result sample", nil))
			}
			_ = pl.finish(ctx, jobs.StateReady, nil)
			slog.Info("bfl job ready", "job_id", pl.job.ID, "polls", attempt)
			return sample, nil

		case statusError, statusFailed:
			return "", pl.finish(ctx, jobs.StateError,
				core.NewVendorAPIError(providerName, p.model, http.StatusBadGateway, vendorDetail(result, status), nil))

		case statusRequestModerated, statusContentModerated:
			return "", pl.finish(ctx, jobs.StateModerated,
				core.NewModerationError(providerName, p.model, vendorDetail(result, status)))

		case statusPending, statusTaskNotFound:
			// a freshly submitted job may not be visible yet

		default:
			slog.Warn("unknown bfl job status, continuing to poll", "job_id", pl.job.ID, "status", status)
		}

		p.record(ctx, pl.job)
	}

	msg := fmt.Sprintf("job %s did not complete after %d polls", pl.job.ID, pl.maxAttempts)
	return "", pl.finish(ctx, jobs.StateTimedOut, core.NewTimeoutError(providerName, p.model, msg, lastErr))
}

// poll performs one status request. Transport failures and non-2xx responses are errors.
func (pl *poller) poll(ctx context.Context) ([]byte, error) {
	p := pl.provider
	info := llmclient.RequestInfo{
		Provider: providerName,
		Model:    p.model,
		Method:   http.MethodGet,
		Endpoint: resultEndpoint,
	}
	ctx = p.hooks.Start(ctx, info)
	started := time.Now()

	req := p.client.R().SetContext(ctx)
	if requestID := core.GetRequestID(ctx); requestID != "" {
		req.SetHeader("X-Request-ID", requestID)
	}

	var (
		resp *resty.Response
		err  error
	)
	if pl.job.PollingURL != "" {
		resp, err = req.Get(pl.job.PollingURL)
	} else {
		resp, err = req.SetQueryParam("id", pl.job.ID).Get(resultEndpoint)
	}
	if err != nil {
		gwErr := core.NewVendorAPIError(providerName, p.model, http.StatusBadGateway, "failed to poll job: "+err.Error(), err)
		p.hooks.End(ctx, info, 0, started, gwErr)
		return nil, gwErr
	}
	if !resp.IsSuccess() {
		gwErr := core.ParseProviderError(providerName, p.model, resp.StatusCode(), resp.Body(), nil)
		p.hooks.End(ctx, info, resp.StatusCode(), started, gwErr)
		return nil, gwErr
	}

	p.hooks.End(ctx, info, resp.StatusCode(), started, nil)
	return resp.Body(), nil
}

// finish journals the terminal state and returns err unchanged.
func (pl *poller) finish(ctx context.Context, state jobs.State, err error) error {
	pl.job.State = state
	if err != nil {
		pl.job.Error = err.Error()
		slog.Warn("bfl job failed", "job_id", pl.job.ID, "state", state, "polls", pl.job.Polls, "error", err)
	}
	pl.provider.record(ctx, pl.job)
	return err
}

// vendorDetail returns the vendor's explanation for a failed job, or the status itself.
func vendorDetail(result gjson.Result, status string) string {
	for _, path := range []string{"details", "error", "result.error", "message"} {
		v := result.Get(path)
		if !v.Exists() {
			continue
		}
		if v.Type == gjson.String && v.String() != "" {
			return status + ": " + v.String()
		}
		if v.IsObject() || v.IsArray() {
			return status + ": " + v.Raw
		}
	}
	return status
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
