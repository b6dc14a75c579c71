package podcast

import (
	"context"
	"time"

	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/utils"
)

// LipSyncRequest pairs a speaker's base video with a segment's audio.
type LipSyncRequest struct {
	SegmentIndex int
	Speaker      Speaker
	VideoPath    string
	AudioPath    string
}

// VideoStage produces one lip-synced video per audio artifact.
type VideoStage struct {
	Backend jobclient.Backend[LipSyncRequest]
	Driver  jobclient.Driver
	Assets  map[Speaker]string
	Dir     string
	Workers int
}

// CheckAssets verifies a base video exists on disk for every speaker.
func (s VideoStage) CheckAssets(speakers []Speaker) error {
	for _, sp := range speakers {
		path := s.Assets[sp]
		if path == "" || !utils.FileExists(path) {
			return &MissingAssetError{Speaker: sp, Path: path}
		}
	}
	return nil
}

// Run lip-syncs every audio artifact. Assets are checked before any job is
// submitted. Output is a one-to-one mapping over audio by index and speaker.
func (s VideoStage) Run(ctx context.Context, audio []Artifact) ([]Artifact, error) {
	audio = SortArtifacts(audio)

	indices := make([]int, len(audio))
	for i, a := range audio {
		indices[i] = a.SegmentIndex
	}
	if err := checkIndices(indices); err != nil {
		return nil, err
	}

	speakers := []Speaker{}
	seen := map[Speaker]bool{}
	for _, a := range audio {
		if !seen[a.Speaker] {
			seen[a.Speaker] = true
			speakers = append(speakers, a.Speaker)
		}
	}
	if err := s.CheckAssets(speakers); err != nil {
		return nil, err
	}

	start := time.Now()
	utils.Info("video stage start", "segments", len(audio), "backend", s.Backend.Name(), "workers", max(s.Workers, 1))
	artifacts, err := forEach(ctx, len(audio), s.Workers, func(ctx context.Context, i int) (Artifact, error) {
		a := audio[i]
		req := LipSyncRequest{
			SegmentIndex: a.SegmentIndex,
			Speaker:      a.Speaker,
			VideoPath:    s.Assets[a.Speaker],
			AudioPath:    a.Path,
		}
		dest := ArtifactPath(s.Dir, KindVideo, a.SegmentIndex, a.Speaker)
		path, err := jobclient.Await(ctx, s.Driver, s.Backend, req, dest)
		if err != nil {
			return Artifact{}, &SegmentError{SegmentIndex: a.SegmentIndex, Speaker: a.Speaker, Err: err}
		}
		utils.Info("video segment ready", "index", a.SegmentIndex, "speaker", a.Speaker)
		return Artifact{SegmentIndex: a.SegmentIndex, Speaker: a.Speaker, Path: path, Kind: KindVideo}, nil
	})
	if err != nil {
		return nil, err
	}
	utils.Info("video stage done", "artifacts", len(artifacts), "dur", time.Since(start).Truncate(time.Millisecond).String())
	return artifacts, nil
}
