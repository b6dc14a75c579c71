// Package clips reads ranked clip sets and turns a selected clip's dialogue
// into ordered podcast segments.
package clips

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/utils"
)

type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type ViralRationale struct {
	ScoreTotal        float64 `json:"score_total_0_10"`
	StrongClaim       float64 `json:"strong_claim_0_5"`
	TensionResolution float64 `json:"tension_resolution_0_5"`
	Quotability       float64 `json:"quotability_0_5"`
	Specificity       float64 `json:"specificity_0_5"`
	EmotionFit        float64 `json:"emotion_fit_0_5"`
	Notes             string  `json:"notes"`
}

type Clip struct {
	Rank              int             `json:"rank"`
	StartTime         string          `json:"start_time"`
	EndTime           string          `json:"end_time"`
	HookText          string          `json:"hook_text"`
	FullTranscript    string          `json:"full_30s_transcript"`
	DialogueLines     []DialogueLine  `json:"dialogue_lines"`
	AppMentionPresent bool            `json:"app_mention_present"`
	AppMentionSpeaker string          `json:"app_mention_speaker,omitempty"`
	OnTopicTerms      []string        `json:"on_topic_terms_found,omitempty"`
	RelevanceScore    float64         `json:"relevance_score_0_1"`
	WhyItFitsApp      string          `json:"why_it_fits_app,omitempty"`
	ViralRationale    *ViralRationale `json:"viral_rationale,omitempty"`
	Confidence        float64         `json:"confidence_0_1"`
}

// Set is a ranked list of clips as produced by clip selection.
type Set struct {
	Topic    string `json:"topic"`
	Audience string `json:"audience"`
	Clips    []Clip `json:"clips_ranked"`
}

// NoDialogueError means the requested clip yields no usable lines.
type NoDialogueError struct {
	ClipIndex int
	Reason    string
}

func (e *NoDialogueError) Error() string {
	return fmt.Sprintf("clip %d: no dialogue: %s", e.ClipIndex, e.Reason)
}

// Speaker labels used in clip dialogue.
const (
	LabelSpeakerA = "Speaker A"
	LabelSpeakerB = "Speaker B"
)

// MapSpeaker converts a dialogue label to a podcast speaker. Unrecognized
// labels pass through unchanged and are rejected later by voice resolution.
func MapSpeaker(label string) podcast.Speaker {
	switch strings.TrimSpace(label) {
	case LabelSpeakerA:
		return podcast.Person1
	case LabelSpeakerB:
		return podcast.Person2
	case "":
		return "unknown"
	default:
		return podcast.Speaker(strings.TrimSpace(label))
	}
}

func Parse(data []byte) (Set, error) {
	var set Set
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&set); err != nil {
		return Set{}, fmt.Errorf("decode clips json: %w", err)
	}
	if set.Clips == nil {
		return Set{}, fmt.Errorf("decode clips json: missing clips_ranked")
	}
	return set, nil
}

func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, err
	}
	set, err := Parse(data)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Save writes the set as indented JSON.
func Save(path string, set Set) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, bytes.NewReader(append(data, '\n')))
}

// Segments converts the dialogue of clip clipIndex to segments. Lines with
// empty or whitespace-only text are dropped and the rest are renumbered 0..N-1.
func (s Set) Segments(clipIndex int) ([]podcast.Segment, error) {
	if clipIndex < 0 || clipIndex >= len(s.Clips) {
		return nil, &NoDialogueError{ClipIndex: clipIndex, Reason: fmt.Sprintf("index out of range (%d clips)", len(s.Clips))}
	}
	lines := s.Clips[clipIndex].DialogueLines
	segments := make([]podcast.Segment, 0, len(lines))
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		segments = append(segments, podcast.Segment{
			Index:   len(segments),
			Speaker: MapSpeaker(line.Speaker),
			Text:    text,
		})
	}
	if len(segments) == 0 {
		return nil, &NoDialogueError{ClipIndex: clipIndex, Reason: "no non-empty dialogue lines"}
	}
	return segments, nil
}

// ClampIndex falls back to the top-ranked clip when idx is not available.
func (s Set) ClampIndex(idx int) (int, bool) {
	if idx >= 0 && idx < len(s.Clips) {
		return idx, false
	}
	return 0, true
}
