// Package kontext fetches a per-user system prompt that personalizes
// website analysis.
package kontext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-things/clipcast/internal/services"
	"ai-things/clipcast/internal/utils"
)

const serviceName = "kontext"

type Client struct {
	apiKey    string
	baseURL   string
	userID    string
	task      string
	maxTokens int
	http      *http.Client
}

type Options struct {
	APIKey    string
	BaseURL   string
	UserID    string
	Task      string
	MaxTokens int
	Timeout   time.Duration
}

func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.kontext.dev"
	}
	task := opts.Task
	if task == "" {
		task = "general"
	}
	return &Client{
		apiKey:    opts.APIKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userID:    opts.UserID,
		task:      task,
		maxTokens: opts.MaxTokens,
		http:      services.NewHTTPClient(opts.Timeout),
	}
}

type contextInput struct {
	UserID            string `json:"userId"`
	Task              string `json:"task"`
	MaxFacts          *int   `json:"maxFacts"`
	CachePolicy       string `json:"cachePolicy"`
	IncludeRecentData bool   `json:"includeRecentData"`
}

type contextResult struct {
	SystemPrompt string `json:"systemPrompt"`
}

type batchItem struct {
	Result struct {
		Data struct {
			JSON contextResult `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

// SystemPrompt returns the user's personalized system prompt. An empty string
// with a nil error means the service had nothing for this user.
func (c *Client) SystemPrompt(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("kontext: api key missing")
	}
	if strings.TrimSpace(c.userID) == "" {
		return "", errors.New("kontext: user id is required")
	}

	input := contextInput{
		UserID:            c.userID,
		Task:              c.task,
		CachePolicy:       "fresh",
		IncludeRecentData: true,
	}
	if c.maxTokens > 0 {
		facts := min(c.maxTokens/10, 100)
		input.MaxFacts = &facts
	}
	encoded, err := json.Marshal(map[string]any{"0": map[string]any{"json": input}})
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set("batch", "1")
	query.Set("input", string(encoded))

	req, err := services.NewJSONRequest(ctx, http.MethodGet, c.baseURL+"/trpc/data.context?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	start := time.Now()
	var raw json.RawMessage
	if err := services.Do(c.http, serviceName, "context", req, &raw); err != nil {
		return "", err
	}
	prompt, err := decodePrompt(raw)
	if err != nil {
		return "", fmt.Errorf("kontext: context: %w", err)
	}
	utils.Info("kontext context fetched", "task", c.task, "chars", len(prompt), "dur", time.Since(start).Truncate(time.Millisecond).String())
	return prompt, nil
}

// authorize uses the X-Api-Key header for project keys and a bearer token
// otherwise.
func (c *Client) authorize(req *http.Request) {
	if strings.HasPrefix(c.apiKey, "ktext") {
		req.Header.Set("X-Api-Key", c.apiKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// decodePrompt accepts both the batched reply and a bare result object.
func decodePrompt(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var items []batchItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", err
		}
		if len(items) == 0 {
			return "", nil
		}
		return strings.TrimSpace(items[0].Result.Data.JSON.SystemPrompt), nil
	}
	var result contextResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.SystemPrompt), nil
}
