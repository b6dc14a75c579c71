// Package syncso lip-syncs a base video to an audio track with the Sync API.
package syncso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/services"
)

const serviceName = "sync"

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Backend struct {
	opts Options
	http *http.Client
}

var _ jobclient.Backend[podcast.LipSyncRequest] = (*Backend)(nil)

func New(opts Options) *Backend {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.sync.so"
	}
	if opts.Model == "" {
		opts.Model = "lipsync-2"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Backend{opts: opts, http: services.NewHTTPClient(opts.Timeout)}
}

func (b *Backend) Name() string { return serviceName }

type generation struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	OutputURL string `json:"outputUrl"`
	Error     string `json:"error"`
}

func (b *Backend) Submit(ctx context.Context, in podcast.LipSyncRequest) (jobclient.Handle, error) {
	if b.opts.APIKey == "" {
		return jobclient.Handle{}, errors.New("api key missing")
	}
	req, err := services.NewMultipartRequest(ctx, b.opts.BaseURL+"/v2/generate",
		map[string]string{"model": b.opts.Model},
		services.FilePart{Field: "video", Path: in.VideoPath},
		services.FilePart{Field: "audio", Path: in.AudioPath},
	)
	if err != nil {
		return jobclient.Handle{}, err
	}
	req.Header.Set("x-api-key", b.opts.APIKey)

	var gen generation
	if err := services.Do(b.http, serviceName, "generate", req, &gen); err != nil {
		return jobclient.Handle{}, err
	}
	if gen.ID == "" {
		return jobclient.Handle{}, errors.New("response carried no generation id")
	}
	return jobclient.Handle{ID: gen.ID, SubmittedAt: time.Now()}, nil
}

func (b *Backend) Poll(ctx context.Context, h jobclient.Handle) (jobclient.PollResult, error) {
	req, err := services.NewJSONRequest(ctx, http.MethodGet, b.opts.BaseURL+"/v2/generate/"+url.PathEscape(h.ID), nil)
	if err != nil {
		return jobclient.PollResult{}, err
	}
	req.Header.Set("x-api-key", b.opts.APIKey)

	var gen generation
	if err := services.Do(b.http, serviceName, "status", req, &gen); err != nil {
		return jobclient.PollResult{}, err
	}
	status := normalizeStatus(gen.Status)
	res := jobclient.PollResult{Status: status, ResultURL: gen.OutputURL}
	if status == jobclient.StatusFailed {
		res.Reason = gen.Error
		if res.Reason == "" {
			res.Reason = "status " + gen.Status
		}
	}
	if status == jobclient.StatusCompleted && gen.OutputURL == "" {
		return jobclient.PollResult{}, fmt.Errorf("generation %s completed without outputUrl", h.ID)
	}
	return res, nil
}

func (b *Backend) Fetch(ctx context.Context, h jobclient.Handle, res jobclient.PollResult, dest string) error {
	return services.Download(ctx, b.http, serviceName, res.ResultURL, dest)
}

func normalizeStatus(raw string) jobclient.Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED":
		return jobclient.StatusCompleted
	case "FAILED", "REJECTED", "ERROR", "CANCELED", "CANCELLED", "TIMED_OUT":
		return jobclient.StatusFailed
	case "PROCESSING":
		return jobclient.StatusRunning
	default:
		return jobclient.StatusPending
	}
}
