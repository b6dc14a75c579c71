package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"ai-things/clipcast/internal/clips"
	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/services/llm"
	"ai-things/clipcast/internal/subtitles"
	"ai-things/clipcast/internal/utils"
)

type Crawler interface {
	Scrape(ctx context.Context, url string) (string, error)
}

type ClipGenerator interface {
	AnalyzeWebsite(ctx context.Context, markdown, extraContext string) (llm.Analysis, error)
	GenerateClips(ctx context.Context, req llm.ClipRequest) (clips.Set, error)
}

// ContextProvider supplies background about the requester when a request
// carries none.
type ContextProvider interface {
	SystemPrompt(ctx context.Context) (string, error)
}

type Composer interface {
	Compose(ctx context.Context, videos []podcast.Artifact, output string) (string, error)
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Orchestrator runs the fixed stage sequence. Stage values are templates: the
// per-run directory is filled in by Run.
type Orchestrator struct {
	Crawler  Crawler
	Clips    ClipGenerator
	Profile  ContextProvider
	Audio    podcast.AudioStage
	Video    podcast.VideoStage
	Composer Composer
	Caption  podcast.CaptionStage

	WorkDir      string
	OutputDir    string
	ClipMax      int
	EnhanceClips bool
	Subtitles    bool

	Observer Observer
	Now      func() time.Time
	NewRunID func() string
}

type run struct {
	o      *Orchestrator
	id     string
	state  State
	result Result
	mark   time.Time
}

func (r *run) enter(ctx context.Context, next State, detail string) {
	now := time.Now()
	if !r.state.Terminal() && r.state != "" {
		r.result.Timings = append(r.result.Timings, StageTiming{Stage: r.state, Duration: now.Sub(r.mark)})
	}
	prev := r.state
	r.state = next
	r.mark = now
	r.o.observer().Transition(ctx, r.id, prev, next, detail)
}

func (r *run) fail(ctx context.Context, stage State, err error) (Result, error) {
	se := stageError(stage, err)
	r.enter(ctx, StateFailed, se.Error())
	r.o.observer().RunFinished(ctx, r.result, se)
	return r.result, se
}

// Run executes req end to end. A non-nil error is always a *StageError and
// the run ended in StateFailed; captioning problems never fail a run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	r := &run{o: o, id: o.newRunID()}
	r.result.RunID = r.id
	r.result.RunDir = filepath.Join(o.WorkDir, r.id)

	o.observer().RunStarted(ctx, r.id, req)
	r.enter(ctx, StateAnalyzing, req.WebsiteURL)

	if err := utils.EnsureDir(r.result.RunDir); err != nil {
		return r.fail(ctx, StateAnalyzing, fmt.Errorf("create run dir: %w", err))
	}

	set, appName, err := o.selectClips(ctx, r, req)
	if err != nil {
		return r.fail(ctx, r.state, err)
	}
	r.result.AppName = appName

	r.enter(ctx, StateScripting, "")
	idx, clamped := set.ClampIndex(req.ClipIndex)
	if clamped {
		utils.Warn("clip index out of range, using top clip", "requested", req.ClipIndex, "clips", len(set.Clips))
	}
	r.result.ClipIndex = idx
	segments, err := set.Segments(idx)
	if err != nil {
		return r.fail(ctx, StateScripting, err)
	}
	r.result.Segments = len(segments)

	video := o.Video
	video.Dir = r.result.RunDir
	if err := video.CheckAssets(podcast.Speakers(segments)); err != nil {
		return r.fail(ctx, StateScripting, err)
	}

	r.enter(ctx, StateSynthesizing, fmt.Sprintf("%d segments", len(segments)))
	audio := o.Audio
	audio.Dir = r.result.RunDir
	audioArtifacts, err := audio.Run(ctx, segments)
	if err != nil {
		return r.fail(ctx, StateSynthesizing, err)
	}
	o.report(ctx, r.id, audioArtifacts)

	r.enter(ctx, StateVideoSynthesis, "")
	videoArtifacts, err := video.Run(ctx, audioArtifacts)
	if err != nil {
		return r.fail(ctx, StateVideoSynthesis, err)
	}
	o.report(ctx, r.id, videoArtifacts)

	r.enter(ctx, StateComposing, "")
	output := filepath.Join(o.outputDir(r.result.RunDir), OutputName(appName, idx, o.now()))
	composed, err := o.Composer.Compose(ctx, videoArtifacts, output)
	if err != nil {
		return r.fail(ctx, StateComposing, err)
	}
	r.result.ComposedPath = composed
	if o.Subtitles {
		r.result.SubtitlePath = o.writeSidecar(ctx, composed, segments, videoArtifacts)
	}

	r.enter(ctx, StateCaptioning, "")
	caption, err := o.Caption.Run(ctx, composed)
	if err != nil {
		return r.fail(ctx, StateCaptioning, err)
	}
	r.result.FinalVideoPath = caption.Path
	r.result.Captioned = caption.Captioned
	detail := "captioned"
	if caption.Err != nil {
		r.result.CaptionErr = caption.Err.Error()
		detail = "uncaptioned: " + r.result.CaptionErr
	} else if !caption.Captioned {
		detail = "captions disabled"
	}

	r.enter(ctx, StateDone, detail)
	o.observer().RunFinished(ctx, r.result, nil)
	return r.result, nil
}

// selectClips covers Analyzing and ClipSelection, or loads a ready clip set.
func (o *Orchestrator) selectClips(ctx context.Context, r *run, req Request) (clips.Set, string, error) {
	if req.ClipsPath != "" {
		set, err := clips.Load(req.ClipsPath)
		if err != nil {
			return clips.Set{}, "", err
		}
		r.enter(ctx, StateClipSelection, "loaded "+req.ClipsPath)
		return set, firstNonEmpty(req.AppName, set.Topic, "clipcast"), nil
	}

	if o.Crawler == nil || o.Clips == nil {
		return clips.Set{}, "", errors.New("website analysis is not configured")
	}
	if strings.TrimSpace(req.WebsiteURL) == "" {
		return clips.Set{}, "", errors.New("website url is required")
	}
	markdown, err := o.Crawler.Scrape(ctx, req.WebsiteURL)
	if err != nil {
		return clips.Set{}, "", err
	}
	analysis, err := o.Clips.AnalyzeWebsite(ctx, markdown, o.extraContext(ctx, req))
	if err != nil {
		return clips.Set{}, "", err
	}
	if err := writeJSON(filepath.Join(r.result.RunDir, "analysis.json"), analysis); err != nil {
		utils.Warn("save analysis failed", "err", err)
	}

	r.enter(ctx, StateClipSelection, analysis.AppName)
	transcript, err := readTranscript(req)
	if err != nil {
		return clips.Set{}, "", err
	}
	clipMax := req.ClipMax
	if clipMax <= 0 {
		clipMax = o.ClipMax
	}
	set, err := o.Clips.GenerateClips(ctx, llm.ClipRequest{
		Analysis:   analysis,
		Transcript: transcript,
		ClipMax:    clipMax,
		Whitelist:  req.Whitelist,
		Blacklist:  req.Blacklist,
		Enhance:    o.EnhanceClips,
	})
	if err != nil {
		return clips.Set{}, "", err
	}
	if err := clips.Save(filepath.Join(r.result.RunDir, "generated_clips.json"), set); err != nil {
		utils.Warn("save clips failed", "err", err)
	}
	return set, firstNonEmpty(req.AppName, analysis.AppName, "clipcast"), nil
}

// extraContext prefers the request's own context. Provider failures only
// cost personalization.
func (o *Orchestrator) extraContext(ctx context.Context, req Request) string {
	if strings.TrimSpace(req.ExtraContext) != "" || o.Profile == nil {
		return req.ExtraContext
	}
	extra, err := o.Profile.SystemPrompt(ctx)
	if err != nil {
		utils.Warn("personalized context unavailable", "err", err)
		return ""
	}
	return extra
}

func (o *Orchestrator) report(ctx context.Context, runID string, artifacts []podcast.Artifact) {
	for _, a := range artifacts {
		o.observer().ArtifactProduced(ctx, runID, a)
	}
}

// writeSidecar writes "<composed>.srt" timed from the probed segment videos.
// Failures only cost the sidecar.
func (o *Orchestrator) writeSidecar(ctx context.Context, composed string, segments []podcast.Segment, videos []podcast.Artifact) string {
	sorted := podcast.SortArtifacts(videos)
	lines := make([]subtitles.Line, 0, len(sorted))
	for i, v := range sorted {
		seconds, err := o.Composer.ProbeDuration(ctx, v.Path)
		if err != nil {
			utils.Warn("subtitle sidecar skipped", "video", v.Path, "err", err)
			return ""
		}
		lines = append(lines, subtitles.Line{
			Text:     segments[i].Text,
			Duration: time.Duration(seconds * float64(time.Second)),
		})
	}
	path := strings.TrimSuffix(composed, filepath.Ext(composed)) + ".srt"
	if err := subtitles.WriteSRT(path, subtitles.BuildDialogue(lines)); err != nil {
		utils.Warn("subtitle sidecar write failed", "path", path, "err", err)
		return ""
	}
	utils.Debug("subtitle sidecar", "path", path, "cues", len(lines))
	return path
}

// OutputName is "<app>_clip_<idx>_<YYYYmmdd_HHMMSS>.mp4".
func OutputName(appName string, clipIndex int, at time.Time) string {
	slug := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, utils.SlugName(appName))
	if slug == "" {
		slug = "clipcast"
	}
	return fmt.Sprintf("%s_clip_%d_%s.mp4", slug, clipIndex, at.Format("20060102_150405"))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, bytes.NewReader(data))
}

func readTranscript(req Request) (string, error) {
	if strings.TrimSpace(req.Transcript) != "" {
		return req.Transcript, nil
	}
	if req.TranscriptPath == "" {
		return "", errors.New("transcript is required")
	}
	data, err := os.ReadFile(req.TranscriptPath)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("transcript %s is empty", req.TranscriptPath)
	}
	return string(data), nil
}

func (o *Orchestrator) observer() Observer {
	if o.Observer == nil {
		return LogObserver{}
	}
	return o.Observer
}

func (o *Orchestrator) outputDir(runDir string) string {
	if o.OutputDir == "" {
		return runDir
	}
	return o.OutputDir
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o *Orchestrator) newRunID() string {
	if o.NewRunID == nil {
		return uuid.NewString()
	}
	return o.NewRunID()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
