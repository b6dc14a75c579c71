// Package firecrawl scrapes a web page into markdown.
package firecrawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ai-things/clipcast/internal/services"
	"ai-things/clipcast/internal/utils"
)

const serviceName = "firecrawl"

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev/v1"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    services.NewHTTPClient(timeout),
	}
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// Scrape returns the markdown rendering of url.
func (c *Client) Scrape(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("firecrawl: url is required")
	}
	if c.apiKey == "" {
		return "", errors.New("firecrawl: api key missing")
	}

	req, err := services.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/scrape", scrapeRequest{
		URL:     url,
		Formats: []string{"markdown"},
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	var resp scrapeResponse
	if err := services.Do(c.http, serviceName, "scrape", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("firecrawl: scrape %s: %s", url, firstNonEmpty(resp.Error, "unsuccessful response"))
	}
	markdown := strings.TrimSpace(resp.Data.Markdown)
	if markdown == "" {
		return "", fmt.Errorf("firecrawl: scrape %s: empty content", url)
	}
	utils.Info("website scraped", "url", url, "chars", len(markdown), "dur", time.Since(start).Truncate(time.Millisecond).String())
	return markdown, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
