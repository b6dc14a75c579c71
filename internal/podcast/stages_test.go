package podcast

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/utils"
)

func init() {
	utils.SetLogOutput(io.Discard)
}

// fakeBackend completes every job on the first poll and writes a marker file on fetch.
type fakeBackend[In any] struct {
	mu        sync.Mutex
	submitted []In
	failOn    func(In) bool
	status    jobclient.Status
	delay     func(In) time.Duration
}

func (b *fakeBackend[In]) Name() string { return "fake" }

func (b *fakeBackend[In]) Submit(ctx context.Context, in In) (jobclient.Handle, error) {
	if b.delay != nil {
		time.Sleep(b.delay(in))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, in)
	if b.failOn != nil && b.failOn(in) {
		return jobclient.Handle{}, errors.New("rejected")
	}
	return jobclient.Handle{ID: "job"}, nil
}

func (b *fakeBackend[In]) Poll(ctx context.Context, h jobclient.Handle) (jobclient.PollResult, error) {
	status := b.status
	if status == "" {
		status = jobclient.StatusCompleted
	}
	return jobclient.PollResult{Status: status, Reason: "backend said no"}, nil
}

func (b *fakeBackend[In]) Fetch(ctx context.Context, h jobclient.Handle, res jobclient.PollResult, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("data"), 0o644)
}

func (b *fakeBackend[In]) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submitted)
}

func testDriver() jobclient.Driver { return jobclient.NewDriver(time.Millisecond, 3) }

func sampleSegments() []Segment {
	return []Segment{
		{Index: 0, Speaker: Person1, Text: "You know what's frustrating?"},
		{Index: 1, Speaker: Person2, Text: "What?"},
		{Index: 2, Speaker: Person1, Text: "Logging every meal."},
		{Index: 3, Speaker: Person2, Text: "Totally."},
	}
}

func testVoices() map[Speaker]string {
	return map[Speaker]string{Person1: "voice-a", Person2: "voice-b"}
}

func TestAudioStageProducesDenseIndices(t *testing.T) {
	for _, workers := range []int{1, 3} {
		backend := &fakeBackend[SpeechRequest]{
			delay: func(r SpeechRequest) time.Duration {
				return time.Duration(4-r.SegmentIndex) * time.Millisecond
			},
		}
		stage := AudioStage{Backend: backend, Driver: testDriver(), Voices: testVoices(), Dir: t.TempDir(), Workers: workers}

		artifacts, err := stage.Run(context.Background(), sampleSegments())
		if err != nil {
			t.Fatalf("workers=%d: Run: %v", workers, err)
		}
		if len(artifacts) != 4 {
			t.Fatalf("workers=%d: expected 4 artifacts, got %d", workers, len(artifacts))
		}
		for i, a := range artifacts {
			if a.SegmentIndex != i {
				t.Fatalf("workers=%d: artifact %d has index %d", workers, i, a.SegmentIndex)
			}
			if a.Kind != KindAudio {
				t.Fatalf("unexpected kind %s", a.Kind)
			}
			if want := ArtifactPath(stage.Dir, KindAudio, i, a.Speaker); a.Path != want {
				t.Fatalf("unexpected path %q want %q", a.Path, want)
			}
		}
	}
}

func TestAudioStageRejectsUnknownSpeakerBeforeSubmitting(t *testing.T) {
	backend := &fakeBackend[SpeechRequest]{}
	stage := AudioStage{Backend: backend, Driver: testDriver(), Voices: testVoices(), Dir: t.TempDir()}
	segments := append(sampleSegments(), Segment{Index: 4, Speaker: "Speaker C", Text: "hi"})

	_, err := stage.Run(context.Background(), segments)
	var unknown *UnknownSpeakerError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSpeakerError, got %v", err)
	}
	if unknown.SegmentIndex != 4 || unknown.Speaker != "Speaker C" {
		t.Fatalf("unexpected error detail %+v", unknown)
	}
	if backend.count() != 0 {
		t.Fatalf("expected no submissions, got %d", backend.count())
	}
}

func TestAudioStageAbortsOnJobFailure(t *testing.T) {
	backend := &fakeBackend[SpeechRequest]{failOn: func(r SpeechRequest) bool { return r.SegmentIndex == 2 }}
	stage := AudioStage{Backend: backend, Driver: testDriver(), Voices: testVoices(), Dir: t.TempDir()}

	_, err := stage.Run(context.Background(), sampleSegments())
	var segErr *SegmentError
	if !errors.As(err, &segErr) || segErr.SegmentIndex != 2 {
		t.Fatalf("expected SegmentError for index 2, got %v", err)
	}
	var subErr *jobclient.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected wrapped SubmissionError, got %v", err)
	}
	if backend.count() != 3 {
		t.Fatalf("sequential stage should stop after the failing segment, got %d submissions", backend.count())
	}
}

func writeAssets(t *testing.T, speakers ...Speaker) map[Speaker]string {
	t.Helper()
	dir := t.TempDir()
	assets := map[Speaker]string{}
	for _, sp := range []Speaker{Person1, Person2} {
		assets[sp] = filepath.Join(dir, string(sp)+".mp4")
	}
	for _, sp := range speakers {
		if err := os.WriteFile(assets[sp], []byte("base"), 0o644); err != nil {
			t.Fatalf("write asset: %v", err)
		}
	}
	return assets
}

func audioArtifacts(dir string) []Artifact {
	out := []Artifact{}
	for _, seg := range sampleSegments() {
		out = append(out, Artifact{
			SegmentIndex: seg.Index,
			Speaker:      seg.Speaker,
			Path:         ArtifactPath(dir, KindAudio, seg.Index, seg.Speaker),
			Kind:         KindAudio,
		})
	}
	return out
}

func TestVideoStageIsOneToOneWithAudio(t *testing.T) {
	backend := &fakeBackend[LipSyncRequest]{}
	dir := t.TempDir()
	stage := VideoStage{Backend: backend, Driver: testDriver(), Assets: writeAssets(t, Person1, Person2), Dir: dir, Workers: 2}
	audio := audioArtifacts(dir)

	shuffled := []Artifact{audio[2], audio[0], audio[3], audio[1]}
	videos, err := stage.Run(context.Background(), shuffled)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(videos) != len(audio) {
		t.Fatalf("expected %d videos, got %d", len(audio), len(videos))
	}
	for i, v := range videos {
		if v.SegmentIndex != audio[i].SegmentIndex || v.Speaker != audio[i].Speaker {
			t.Fatalf("video %d does not match audio: %+v vs %+v", i, v, audio[i])
		}
		if v.Kind != KindVideo {
			t.Fatalf("unexpected kind %s", v.Kind)
		}
	}

	for _, req := range backend.submitted {
		if req.VideoPath != stage.Assets[req.Speaker] {
			t.Fatalf("segment %d used base video %q", req.SegmentIndex, req.VideoPath)
		}
	}
}

func TestVideoStageMissingAssetSubmitsNothing(t *testing.T) {
	backend := &fakeBackend[LipSyncRequest]{}
	dir := t.TempDir()
	stage := VideoStage{Backend: backend, Driver: testDriver(), Assets: writeAssets(t, Person1), Dir: dir}

	_, err := stage.Run(context.Background(), audioArtifacts(dir))
	var missing *MissingAssetError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingAssetError, got %v", err)
	}
	if missing.Speaker != Person2 {
		t.Fatalf("unexpected speaker %q", missing.Speaker)
	}
	if backend.count() != 0 {
		t.Fatalf("expected zero submissions, got %d", backend.count())
	}
}

func TestStagesRejectDuplicateOrGappedIndices(t *testing.T) {
	cases := []struct {
		name    string
		indices []int
	}{
		{"duplicate", []int{0, 0, 2}},
		{"gap", []int{0, 1, 3}},
		{"negative", []int{-1, 0, 1}},
	}
	for _, tc := range cases {
		for _, workers := range []int{1, 3} {
			segments := make([]Segment, len(tc.indices))
			audio := make([]Artifact, len(tc.indices))
			for i, idx := range tc.indices {
				segments[i] = Segment{Index: idx, Speaker: Person1, Text: "line"}
				audio[i] = Artifact{SegmentIndex: idx, Speaker: Person1, Path: "a.mp3", Kind: KindAudio}
			}

			speech := &fakeBackend[SpeechRequest]{}
			audioStage := AudioStage{Backend: speech, Driver: testDriver(), Voices: testVoices(), Dir: t.TempDir(), Workers: workers}
			_, err := audioStage.Run(context.Background(), segments)
			var idxErr *IndexError
			if !errors.As(err, &idxErr) {
				t.Fatalf("%s workers=%d: audio err = %v", tc.name, workers, err)
			}
			if speech.count() != 0 {
				t.Fatalf("%s workers=%d: audio submitted %d jobs", tc.name, workers, speech.count())
			}

			lipsync := &fakeBackend[LipSyncRequest]{}
			videoStage := VideoStage{Backend: lipsync, Driver: testDriver(), Assets: writeAssets(t, Person1), Dir: t.TempDir(), Workers: workers}
			_, err = videoStage.Run(context.Background(), audio)
			if !errors.As(err, &idxErr) {
				t.Fatalf("%s workers=%d: video err = %v", tc.name, workers, err)
			}
			if lipsync.count() != 0 {
				t.Fatalf("%s workers=%d: video submitted %d jobs", tc.name, workers, lipsync.count())
			}
		}
	}
}

func TestForEachParallelDetectsCollapsedIndices(t *testing.T) {
	_, err := forEach(context.Background(), 3, 2, func(ctx context.Context, i int) (Artifact, error) {
		return Artifact{SegmentIndex: 0, Kind: KindAudio}, nil
	})
	if err == nil {
		t.Fatal("expected error when artifacts collapse onto one index")
	}
}

func TestCaptionStageAbsorbsFailures(t *testing.T) {
	composed := filepath.Join(t.TempDir(), "app_clip_0.mp4")

	failing := CaptionStage{Backend: &fakeBackend[CaptionRequest]{status: jobclient.StatusFailed}, Driver: testDriver(), Enabled: true}
	res, err := failing.Run(context.Background(), composed)
	if err != nil {
		t.Fatalf("caption failure must be absorbed, got %v", err)
	}
	if res.Captioned || res.Path != composed {
		t.Fatalf("expected fallback to composed video, got %+v", res)
	}
	var failed *jobclient.JobFailedError
	if !errors.As(res.Err, &failed) {
		t.Fatalf("expected JobFailedError to be reported, got %v", res.Err)
	}

	stuck := CaptionStage{Backend: &fakeBackend[CaptionRequest]{status: jobclient.StatusRunning}, Driver: testDriver(), Enabled: true}
	res, err = stuck.Run(context.Background(), composed)
	if err != nil {
		t.Fatalf("caption timeout must be absorbed, got %v", err)
	}
	var timeout *jobclient.JobTimeoutError
	if res.Captioned || res.Path != composed || !errors.As(res.Err, &timeout) {
		t.Fatalf("expected timeout fallback, got %+v", res)
	}
}

func TestCaptionStageSuccess(t *testing.T) {
	composed := filepath.Join(t.TempDir(), "app_clip_0.mp4")
	stage := CaptionStage{Backend: &fakeBackend[CaptionRequest]{}, Driver: testDriver(), Enabled: true}

	res, err := stage.Run(context.Background(), composed)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := filepath.Join(filepath.Dir(composed), "app_clip_0_captioned.mp4")
	if !res.Captioned || res.Path != want {
		t.Fatalf("unexpected result %+v", res)
	}
}
