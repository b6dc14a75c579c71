package podcast

import (
	"context"
	"time"

	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/utils"
)

// SpeechRequest is what a speech backend needs to voice one segment.
type SpeechRequest struct {
	SegmentIndex int
	Speaker      Speaker
	VoiceID      string
	Text         string
}

// AudioStage produces one audio artifact per segment.
type AudioStage struct {
	Backend jobclient.Backend[SpeechRequest]
	Driver  jobclient.Driver
	Voices  map[Speaker]string
	// Dir is the run directory; artifacts land under Dir/audio.
	Dir     string
	Workers int
}

// Run voices every segment. Any failure aborts the stage; the returned
// artifacts carry exactly the input indices in ascending order.
func (s AudioStage) Run(ctx context.Context, segments []Segment) ([]Artifact, error) {
	indices := make([]int, len(segments))
	for i, seg := range segments {
		indices[i] = seg.Index
	}
	if err := checkIndices(indices); err != nil {
		return nil, err
	}

	requests := make([]SpeechRequest, len(segments))
	for i, seg := range segments {
		voice, ok := s.Voices[seg.Speaker]
		if !ok || voice == "" {
			return nil, &UnknownSpeakerError{SegmentIndex: seg.Index, Speaker: seg.Speaker}
		}
		requests[i] = SpeechRequest{SegmentIndex: seg.Index, Speaker: seg.Speaker, VoiceID: voice, Text: seg.Text}
	}

	start := time.Now()
	utils.Info("audio stage start", "segments", len(segments), "backend", s.Backend.Name(), "workers", max(s.Workers, 1))
	artifacts, err := forEach(ctx, len(requests), s.Workers, func(ctx context.Context, i int) (Artifact, error) {
		req := requests[i]
		dest := ArtifactPath(s.Dir, KindAudio, req.SegmentIndex, req.Speaker)
		utils.Debug("audio segment", "index", req.SegmentIndex, "speaker", req.Speaker, "chars", len(req.Text))
		path, err := jobclient.Await(ctx, s.Driver, s.Backend, req, dest)
		if err != nil {
			return Artifact{}, &SegmentError{SegmentIndex: req.SegmentIndex, Speaker: req.Speaker, Err: err}
		}
		return Artifact{SegmentIndex: req.SegmentIndex, Speaker: req.Speaker, Path: path, Kind: KindAudio}, nil
	})
	if err != nil {
		return nil, err
	}
	utils.Info("audio stage done", "artifacts", len(artifacts), "dur", time.Since(start).Truncate(time.Millisecond).String())
	return artifacts, nil
}
