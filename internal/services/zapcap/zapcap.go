// Package zapcap burns captions into a finished video with the ZapCap API.
package zapcap

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
	"ai-things/clipcast/internal/utils"
)

const serviceName = "zapcap"

type Options struct {
	APIKey     string
	BaseURL    string
	TemplateID string
	Language   string
	Timeout    time.Duration
}

// Backend uploads the video, starts a caption task and tracks it. Handle IDs
// are "<videoID>/<taskID>".
type Backend struct {
	opts Options
	http *http.Client
}

var _ jobclient.Backend[podcast.CaptionRequest] = (*Backend)(nil)

func New(opts Options) *Backend {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.zapcap.ai"
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Backend{opts: opts, http: services.NewHTTPClient(opts.Timeout)}
}

func (b *Backend) Name() string { return serviceName }

type uploadResponse struct {
	ID string `json:"id"`
}

type taskRequest struct {
	TemplateID  string `json:"templateId"`
	AutoApprove bool   `json:"autoApprove"`
	Language    string `json:"language"`
}

type taskResponse struct {
	TaskID string `json:"taskId"`
}

type taskStatus struct {
	Status      string `json:"status"`
	DownloadURL string `json:"downloadUrl"`
	Error       string `json:"error"`
}

func (b *Backend) Submit(ctx context.Context, in podcast.CaptionRequest) (jobclient.Handle, error) {
	if b.opts.APIKey == "" {
		return jobclient.Handle{}, errors.New("api key missing")
	}
	if b.opts.TemplateID == "" {
		return jobclient.Handle{}, errors.New("caption template id missing")
	}

	upload, err := services.NewMultipartRequest(ctx, b.opts.BaseURL+"/videos", nil,
		services.FilePart{Field: "file", Path: in.VideoPath})
	if err != nil {
		return jobclient.Handle{}, err
	}
	upload.Header.Set("x-api-key", b.opts.APIKey)
	var video uploadResponse
	if err := services.Do(b.http, serviceName, "upload", upload, &video); err != nil {
		return jobclient.Handle{}, err
	}
	if video.ID == "" {
		return jobclient.Handle{}, errors.New("upload response carried no video id")
	}
	utils.Debug("caption video uploaded", "video_id", video.ID)

	task, err := services.NewJSONRequest(ctx, http.MethodPost,
		fmt.Sprintf("%s/videos/%s/task", b.opts.BaseURL, url.PathEscape(video.ID)),
		taskRequest{TemplateID: b.opts.TemplateID, AutoApprove: true, Language: b.opts.Language})
	if err != nil {
		return jobclient.Handle{}, err
	}
	task.Header.Set("x-api-key", b.opts.APIKey)
	var created taskResponse
	if err := services.Do(b.http, serviceName, "create task", task, &created); err != nil {
		return jobclient.Handle{}, err
	}
	if created.TaskID == "" {
		return jobclient.Handle{}, errors.New("task response carried no task id")
	}
	return jobclient.Handle{ID: video.ID + "/" + created.TaskID, SubmittedAt: time.Now()}, nil
}

func (b *Backend) Poll(ctx context.Context, h jobclient.Handle) (jobclient.PollResult, error) {
	videoID, taskID, ok := strings.Cut(h.ID, "/")
	if !ok {
		return jobclient.PollResult{}, fmt.Errorf("malformed handle %q", h.ID)
	}
	req, err := services.NewJSONRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/videos/%s/task/%s", b.opts.BaseURL, url.PathEscape(videoID), url.PathEscape(taskID)), nil)
	if err != nil {
		return jobclient.PollResult{}, err
	}
	req.Header.Set("x-api-key", b.opts.APIKey)

	var st taskStatus
	if err := services.Do(b.http, serviceName, "task status", req, &st); err != nil {
		return jobclient.PollResult{}, err
	}
	switch strings.ToLower(strings.TrimSpace(st.Status)) {
	case "completed":
		if st.DownloadURL == "" {
			return jobclient.PollResult{}, fmt.Errorf("task %s completed without downloadUrl", taskID)
		}
		return jobclient.PollResult{Status: jobclient.StatusCompleted, ResultURL: st.DownloadURL}, nil
	case "failed":
		return jobclient.PollResult{Status: jobclient.StatusFailed, Reason: st.Error}, nil
	case "pending", "":
		return jobclient.PollResult{Status: jobclient.StatusPending}, nil
	default:
		return jobclient.PollResult{Status: jobclient.StatusRunning}, nil
	}
}

func (b *Backend) Fetch(ctx context.Context, h jobclient.Handle, res jobclient.PollResult, dest string) error {
	return services.Download(ctx, b.http, serviceName, res.ResultURL, dest)
}
