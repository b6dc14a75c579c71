package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const analysisSystemPrompt = `You analyse SaaS and consumer product websites. The input is a scraped page in markdown, possibly messy. Extract concise facts that appear in the page; infer only where the page clearly implies it.

Return one JSON object with exactly these fields:
{
  "app_name": "short exact product name",
  "what_it_does": "one or two sentences",
  "wow_factor": "one or two sentences",
  "better_than_rest": "one or two sentences",
  "hard_problem_solved": "one or two sentences",
  "topic_keywords": ["5 to 10 niche keywords"],
  "ideal_customer_profiles": [{"profile": "short title", "description": "who they are and why they care"}],
  "podcast_search_keywords": ["5 to 10 podcast search phrases"]
}
Give one to four customer profiles. Keep every value factual and brief.`

const clipSystemPrompt = `You edit long podcast transcripts into short vertical clips that fit a product.

Find windows of about thirty seconds that open on a strong hook about the product's topic, stay on that topic throughout, and contain a pain point the product addresses. Reject windows with off-topic chatter or any blacklisted keyword.

Inside each clip, one speaker mentions APP_NAME once, casually, between roughly seven and fifteen seconds in, as a short personal remark of at most twenty words. The mention must not sound like an advert: no superlatives, no calls to action, no exclamation marks. The other speaker answers with at least two more lines so the clip never ends on the mention. Apart from that single line, keep the transcript wording.

Dialogue strictly alternates "Speaker A" and "Speaker B", starting with "Speaker A".

Rank clips by fit with the product first, then hook strength, then flow. Return between one and CLIP_MAX clips. If nothing qualifies, return the single best candidate and say so in viral_rationale.notes.

Return one JSON object:
{
  "topic": "string",
  "audience": "string",
  "clips_ranked": [{
    "rank": 1,
    "start_time": "HH:MM:SS",
    "end_time": "HH:MM:SS",
    "hook_text": "string",
    "full_30s_transcript": "string",
    "dialogue_lines": [{"speaker": "Speaker A", "text": "string"}, {"speaker": "Speaker B", "text": "string"}],
    "app_mention_present": true,
    "app_mention_speaker": "Speaker A",
    "on_topic_terms_found": ["string"],
    "relevance_score_0_1": 0.0,
    "why_it_fits_app": "string about the topic, not the app",
    "viral_rationale": {
      "score_total_0_10": 0,
      "strong_claim_0_5": 0,
      "tension_resolution_0_5": 0,
      "quotability_0_5": 0,
      "specificity_0_5": 0,
      "emotion_fit_0_5": 0,
      "notes": "string"
    },
    "confidence_0_1": 0.0
  }]
}`

const enhanceSystemPrompt = `You prepare podcast dialogue for the ElevenLabs v3 voice model by adding audio tags in square brackets, such as [curious], [thoughtful], [excited], [serious], [sighs] or [whispers]. Never use [laughs].

Add tags, ellipses and dashes for natural pacing and emotion. Vary the tone between the two speakers and keep it subtle, like a real conversation.

Do not change, add or remove any words. Do not change speakers, timestamps or the number of dialogue lines. Return the clip as one JSON object with the same fields it came with.`

func clipUserPrompt(req ClipRequest) string {
	a := req.Analysis

	var useCases []string
	for _, v := range []string{a.WowFactor, a.BetterThanRest, a.HardProblemSolved} {
		if strings.TrimSpace(v) != "" {
			useCases = append(useCases, v)
		}
	}

	var audience []string
	for _, p := range a.IdealCustomerProfiles {
		audience = append(audience, fmt.Sprintf("%s: %s", p.Profile, p.Description))
	}

	topic := a.TopicKeywords
	if len(topic) > 5 {
		topic = topic[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "APP_VALUE_PROP: %s\n", a.WhatItDoes)
	fmt.Fprintf(&b, "APP_USE_CASES: %s\n", strings.Join(useCases, " | "))
	fmt.Fprintf(&b, "AUDIENCE_DESC: %s\n", strings.Join(audience, " | "))
	fmt.Fprintf(&b, "APP_NAME: %s\n", a.AppName)
	fmt.Fprintf(&b, "TOPIC: %s\n", strings.Join(topic, ", "))
	fmt.Fprintf(&b, "OPTIONAL_WHITELIST_KEYWORDS: %s\n", jsonList(req.Whitelist))
	fmt.Fprintf(&b, "OPTIONAL_BLACKLIST_KEYWORDS: %s\n", jsonList(req.Blacklist))
	fmt.Fprintf(&b, "CLIP_MAX: %d\n", req.ClipMax)
	fmt.Fprintf(&b, "TRANSCRIPT: %s", req.Transcript)
	return b.String()
}

func enhanceUserPrompt(clipJSON, appName string) string {
	return fmt.Sprintf("Product name, for context only: %s\n\nAdd audio tags to this clip. Every entry of dialogue_lines must keep its speaker and carry the tagged text.\n\n%s", appName, clipJSON)
}

func jsonList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}
