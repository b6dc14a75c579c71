// Package pipeline sequences website analysis, clip selection, speech,
// lip-sync, composition and captioning into one run.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"ai-things/clipcast/internal/podcast"
)

type State string

const (
	StateAnalyzing      State = "analyzing"
	StateClipSelection  State = "clip_selection"
	StateScripting      State = "scripting"
	StateSynthesizing   State = "synthesizing"
	StateVideoSynthesis State = "video_synthesis"
	StateComposing      State = "composing"
	StateCaptioning     State = "captioning"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Request describes one run. Either WebsiteURL plus a transcript, or a
// ready-made ClipsPath must be given.
type Request struct {
	WebsiteURL     string   `json:"website_url"`
	TranscriptPath string   `json:"transcript_path"`
	Transcript     string   `json:"transcript,omitempty"`
	ClipsPath      string   `json:"clips_path,omitempty"`
	AppName        string   `json:"app_name,omitempty"`
	ClipIndex      int      `json:"clip_index"`
	ClipMax        int      `json:"clip_max"`
	Whitelist      []string `json:"whitelist"`
	Blacklist      []string `json:"blacklist"`
	// ExtraContext is optional background about the requester for analysis.
	ExtraContext string `json:"extra_context,omitempty"`
}

type StageTiming struct {
	Stage    State
	Duration time.Duration
}

// Result is what a run delivered.
type Result struct {
	RunID          string
	FinalVideoPath string
	Captioned      bool
	ComposedPath   string
	SubtitlePath   string
	// CaptionErr is the absorbed captioning failure, empty when captioned or disabled.
	CaptionErr string
	AppName    string
	ClipIndex  int
	RunDir     string
	Segments   int
	Timings    []StageTiming
}

// NoSegment marks a StageError that is not tied to one segment.
const NoSegment = -1

// StageError is a fatal failure with the stage it happened in.
type StageError struct {
	Stage        State
	SegmentIndex int
	Err          error
}

// Error names the segment once: podcast errors already lead with it.
func (e *StageError) Error() string {
	if e.SegmentIndex >= 0 && !namesSegment(e.Err) {
		return fmt.Sprintf("%s (segment %d): %v", e.Stage, e.SegmentIndex, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func namesSegment(err error) bool {
	var segErr *podcast.SegmentError
	var unknown *podcast.UnknownSpeakerError
	return errors.As(err, &segErr) || errors.As(err, &unknown)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageError(stage State, err error) *StageError {
	se := &StageError{Stage: stage, SegmentIndex: NoSegment, Err: err}
	var segErr *podcast.SegmentError
	if errors.As(err, &segErr) {
		se.SegmentIndex = segErr.SegmentIndex
	}
	var unknown *podcast.UnknownSpeakerError
	if errors.As(err, &unknown) {
		se.SegmentIndex = unknown.SegmentIndex
	}
	return se
}
