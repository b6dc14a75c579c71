// Package llm asks an OpenAI-compatible chat model for website analysis,
// ranked clip selection and per-clip voice direction.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"ai-things/clipcast/internal/clips"
	"ai-things/clipcast/internal/services"
	"ai-things/clipcast/internal/utils"
)

type Options struct {
	APIKey        string
	BaseURL       string
	AnalysisModel string
	ClipModel     string
	Timeout       time.Duration
	MaxRetries    int
}

type Client struct {
	client openai.Client
	opts   Options
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("llm: api key missing")
	}
	if opts.AnalysisModel == "" {
		opts.AnalysisModel = "gpt-5"
	}
	if opts.ClipModel == "" {
		opts.ClipModel = "gpt-4.1"
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(services.NewHTTPClient(opts.Timeout)),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if strings.TrimSpace(opts.BaseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Client{client: openai.NewClient(clientOpts...), opts: opts}, nil
}

type CustomerProfile struct {
	Profile     string `json:"profile"`
	Description string `json:"description"`
}

// Analysis is the structured product summary extracted from a website.
type Analysis struct {
	AppName               string            `json:"app_name"`
	WhatItDoes            string            `json:"what_it_does"`
	WowFactor             string            `json:"wow_factor"`
	BetterThanRest        string            `json:"better_than_rest"`
	HardProblemSolved     string            `json:"hard_problem_solved"`
	TopicKeywords         []string          `json:"topic_keywords"`
	IdealCustomerProfiles []CustomerProfile `json:"ideal_customer_profiles"`
	PodcastSearchKeywords []string          `json:"podcast_search_keywords"`
}

// AnalyzeWebsite extracts an Analysis from scraped markdown. extraContext is
// optional background about the requester and may be empty.
func (c *Client) AnalyzeWebsite(ctx context.Context, markdown, extraContext string) (Analysis, error) {
	if strings.TrimSpace(markdown) == "" {
		return Analysis{}, errors.New("llm: website content is empty")
	}
	system := analysisSystemPrompt
	if strings.TrimSpace(extraContext) != "" {
		system += "\n\nBackground about the requester, secondary to the website itself:\n" + extraContext
	}

	start := time.Now()
	var out Analysis
	if err := c.completeJSON(ctx, c.opts.AnalysisModel, system, "SCRAPED_WEBSITE: "+markdown, &out); err != nil {
		return Analysis{}, fmt.Errorf("llm: analyze website: %w", err)
	}
	if strings.TrimSpace(out.AppName) == "" {
		return Analysis{}, errors.New("llm: analysis has no app_name")
	}
	utils.Info("website analyzed", "app", out.AppName, "keywords", len(out.TopicKeywords), "dur", time.Since(start).Truncate(time.Millisecond).String())
	return out, nil
}

// ClipRequest carries the inputs for ranked clip selection.
type ClipRequest struct {
	Analysis   Analysis
	Transcript string
	ClipMax    int
	Whitelist  []string
	Blacklist  []string
	// Enhance adds voice-direction tags to every returned clip.
	Enhance bool
}

// GenerateClips asks for up to ClipMax ranked clips of the transcript.
func (c *Client) GenerateClips(ctx context.Context, req ClipRequest) (clips.Set, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return clips.Set{}, errors.New("llm: transcript is empty")
	}
	if req.ClipMax <= 0 {
		req.ClipMax = 4
	}

	start := time.Now()
	utils.Info("generating clips", "app", req.Analysis.AppName, "clip_max", req.ClipMax, "transcript_chars", len(req.Transcript))
	var set clips.Set
	if err := c.completeJSON(ctx, c.opts.ClipModel, clipSystemPrompt, clipUserPrompt(req), &set); err != nil {
		return clips.Set{}, fmt.Errorf("llm: generate clips: %w", err)
	}
	if len(set.Clips) == 0 {
		return clips.Set{}, errors.New("llm: model returned no clips")
	}
	if len(set.Clips) > req.ClipMax {
		set.Clips = set.Clips[:req.ClipMax]
	}

	if req.Enhance {
		for i := range set.Clips {
			if err := ctx.Err(); err != nil {
				return clips.Set{}, err
			}
			utils.Debug("enhancing clip", "n", i+1, "of", len(set.Clips))
			set.Clips[i] = c.EnhanceClip(ctx, set.Clips[i], req.Analysis.AppName)
		}
	}
	utils.Info("clips generated", "count", len(set.Clips), "dur", time.Since(start).Truncate(time.Millisecond).String())
	return set, nil
}

// EnhanceClip returns clip with expressive audio tags added to its lines. On
// any failure the clip is returned unchanged.
func (c *Client) EnhanceClip(ctx context.Context, clip clips.Clip, appName string) clips.Clip {
	payload, err := json.MarshalIndent(clip, "", "  ")
	if err != nil {
		utils.Warn("enhance clip: encode", "rank", clip.Rank, "err", err)
		return clip
	}

	var enhanced clips.Clip
	if err := c.completeJSON(ctx, c.opts.ClipModel, enhanceSystemPrompt, enhanceUserPrompt(string(payload), appName), &enhanced); err != nil {
		utils.Warn("enhance clip failed, keeping original", "rank", clip.Rank, "err", err)
		return clip
	}
	if len(enhanced.DialogueLines) != len(clip.DialogueLines) {
		utils.Warn("enhance clip changed line count, keeping original", "rank", clip.Rank, "before", len(clip.DialogueLines), "after", len(enhanced.DialogueLines))
		return clip
	}
	for i := range enhanced.DialogueLines {
		if enhanced.DialogueLines[i].Speaker != clip.DialogueLines[i].Speaker {
			utils.Warn("enhance clip changed speakers, keeping original", "rank", clip.Rank, "line", i)
			return clip
		}
	}
	enhanced.StartTime = clip.StartTime
	enhanced.EndTime = clip.EndTime
	enhanced.Rank = clip.Rank
	return enhanced
}

func (c *Client) completeJSON(ctx context.Context, model, system, user string, out any) error {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: model,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return errors.New("model returned no choices")
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return errors.New("model returned empty content")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		fixed := extractFirstJSONObject(raw)
		if fixed == "" {
			return fmt.Errorf("decode model json: %w", err)
		}
		if err := json.Unmarshal([]byte(fixed), out); err != nil {
			return fmt.Errorf("decode model json: %w", err)
		}
	}
	return nil
}

// extractFirstJSONObject returns the first balanced {...} in s, or "".
func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
