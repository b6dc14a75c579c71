// Package elevenlabs voices dialogue segments through the ElevenLabs
// text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/services"
	"ai-things/clipcast/internal/utils"
)

const serviceName = "elevenlabs"

type Options struct {
	APIKey       string
	BaseURL      string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
}

// Backend synthesizes in Submit. The API answers synchronously, so the audio
// is held in memory until Fetch writes it out or the driver discards the job.
type Backend struct {
	opts Options
	http *http.Client

	mu      sync.Mutex
	results map[string][]byte
}

var (
	_ jobclient.Backend[podcast.SpeechRequest] = (*Backend)(nil)
	_ jobclient.Discarder                      = (*Backend)(nil)
)

func New(opts Options) *Backend {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.elevenlabs.io"
	}
	if opts.ModelID == "" {
		opts.ModelID = "eleven_v3"
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = "mp3_44100_128"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Backend{
		opts:    opts,
		http:    services.NewHTTPClient(opts.Timeout),
		results: map[string][]byte{},
	}
}

func (b *Backend) Name() string { return serviceName }

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (b *Backend) Submit(ctx context.Context, in podcast.SpeechRequest) (jobclient.Handle, error) {
	if b.opts.APIKey == "" {
		return jobclient.Handle{}, errors.New("api key missing")
	}
	if strings.TrimSpace(in.Text) == "" {
		return jobclient.Handle{}, fmt.Errorf("segment %d has no text", in.SegmentIndex)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		b.opts.BaseURL, url.PathEscape(in.VoiceID), url.QueryEscape(b.opts.OutputFormat))
	req, err := services.NewJSONRequest(ctx, http.MethodPost, endpoint, ttsRequest{Text: in.Text, ModelID: b.opts.ModelID})
	if err != nil {
		return jobclient.Handle{}, err
	}
	req.Header.Set("xi-api-key", b.opts.APIKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := b.http.Do(req)
	if err != nil {
		return jobclient.Handle{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return jobclient.Handle{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return jobclient.Handle{}, &services.StatusError{
			Service:    serviceName,
			Operation:  "text-to-speech",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if len(body) == 0 {
		return jobclient.Handle{}, errors.New("empty audio response")
	}

	id := fmt.Sprintf("%03d-%s", in.SegmentIndex, utils.ShortDigest([]byte(in.VoiceID+"\n"+in.Text), 12))
	b.mu.Lock()
	b.results[id] = body
	b.mu.Unlock()
	utils.Debug("speech synthesized", "segment", in.SegmentIndex, "speaker", in.Speaker, "bytes", len(body))
	return jobclient.Handle{ID: id, SubmittedAt: time.Now()}, nil
}

func (b *Backend) Poll(ctx context.Context, h jobclient.Handle) (jobclient.PollResult, error) {
	b.mu.Lock()
	_, ok := b.results[h.ID]
	b.mu.Unlock()
	if !ok {
		return jobclient.PollResult{Status: jobclient.StatusFailed, Reason: "no synthesized audio for job"}, nil
	}
	return jobclient.PollResult{Status: jobclient.StatusCompleted}, nil
}

func (b *Backend) Fetch(ctx context.Context, h jobclient.Handle, _ jobclient.PollResult, dest string) error {
	b.mu.Lock()
	data, ok := b.results[h.ID]
	delete(b.results, h.ID)
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("audio for job %s already fetched", h.ID)
	}
	return utils.WriteFileAtomic(dest, bytes.NewReader(data))
}

// Discard drops audio the driver never fetched, for example after a cancel.
func (b *Backend) Discard(h jobclient.Handle) {
	b.mu.Lock()
	delete(b.results, h.ID)
	b.mu.Unlock()
}
