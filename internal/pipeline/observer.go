package pipeline

import (
	"context"
	"fmt"

	"ai-things/clipcast/internal/db"
	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/utils"
)

// Observer is told about run progress. Implementations must not block for long
// and their failures never affect the run.
type Observer interface {
	RunStarted(ctx context.Context, runID string, req Request)
	Transition(ctx context.Context, runID string, from, to State, detail string)
	ArtifactProduced(ctx context.Context, runID string, a podcast.Artifact)
	RunFinished(ctx context.Context, res Result, err error)
}

// Observers fans out to every observer in order.
type Observers []Observer

func (o Observers) RunStarted(ctx context.Context, runID string, req Request) {
	for _, obs := range o {
		obs.RunStarted(ctx, runID, req)
	}
}

func (o Observers) Transition(ctx context.Context, runID string, from, to State, detail string) {
	for _, obs := range o {
		obs.Transition(ctx, runID, from, to, detail)
	}
}

func (o Observers) ArtifactProduced(ctx context.Context, runID string, a podcast.Artifact) {
	for _, obs := range o {
		obs.ArtifactProduced(ctx, runID, a)
	}
}

func (o Observers) RunFinished(ctx context.Context, res Result, err error) {
	for _, obs := range o {
		obs.RunFinished(ctx, res, err)
	}
}

// LogObserver writes progress to the process logger.
type LogObserver struct{}

func (LogObserver) RunStarted(_ context.Context, runID string, req Request) {
	utils.Info("run start", "run", runID, "url", req.WebsiteURL, "clip_index", req.ClipIndex)
}

func (LogObserver) Transition(_ context.Context, runID string, from, to State, detail string) {
	if to == StateFailed {
		utils.Error("run state", "run", runID, "from", from, "to", to, "detail", detail)
		return
	}
	utils.Info("run state", "run", runID, "from", from, "to", to)
}

func (LogObserver) ArtifactProduced(_ context.Context, runID string, a podcast.Artifact) {
	utils.Debug("artifact", "run", runID, "kind", a.Kind, "index", a.SegmentIndex, "speaker", a.Speaker, "path", a.Path)
}

func (LogObserver) RunFinished(_ context.Context, res Result, err error) {
	if err != nil {
		utils.Error("run failed", "run", res.RunID, "err", err)
		return
	}
	utils.Info("run done", "run", res.RunID, "video", res.FinalVideoPath, "captioned", res.Captioned)
}

// LedgerObserver persists progress. Ledger errors are logged and dropped.
type LedgerObserver struct {
	Ledger db.Ledger
}

func (o LedgerObserver) RunStarted(ctx context.Context, runID string, req Request) {
	err := o.Ledger.CreateRun(ctx, db.Run{
		ID:             runID,
		WebsiteURL:     req.WebsiteURL,
		TranscriptPath: req.TranscriptPath,
		AppName:        req.AppName,
		ClipIndex:      req.ClipIndex,
		State:          string(StateAnalyzing),
	})
	o.warn("create run", runID, err)
}

func (o LedgerObserver) Transition(ctx context.Context, runID string, _, to State, detail string) {
	o.warn("record transition", runID, o.Ledger.RecordTransition(ctx, runID, string(to), detail))
}

func (o LedgerObserver) ArtifactProduced(ctx context.Context, runID string, a podcast.Artifact) {
	sum, err := utils.SHA256File(a.Path)
	if err != nil {
		utils.Debug("artifact checksum failed", "path", a.Path, "err", err)
	}
	o.warn("record artifact", runID, o.Ledger.RecordArtifact(ctx, db.ArtifactRecord{
		RunID:        runID,
		SegmentIndex: a.SegmentIndex,
		Speaker:      string(a.Speaker),
		Kind:         string(a.Kind),
		Path:         a.Path,
		SHA256:       sum,
	}))
}

func (o LedgerObserver) RunFinished(ctx context.Context, res Result, err error) {
	// the run context may already be cancelled; the final row must still land
	ctx = context.WithoutCancel(ctx)
	o.warn("finish run", res.RunID, o.Ledger.FinishRun(ctx, res.RunID, db.RunResult{
		FinalVideoPath: res.FinalVideoPath,
		Captioned:      res.Captioned,
	}, err))
}

func (o LedgerObserver) warn(op, runID string, err error) {
	if err != nil {
		utils.Warn("ledger "+op+" failed", "run", runID, "err", err)
	}
}

// Notifier delivers a one-line message, e.g. to a chat channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NotifyObserver posts a summary when a run ends.
type NotifyObserver struct {
	Notifier Notifier
}

func (NotifyObserver) RunStarted(context.Context, string, Request) {}
func (NotifyObserver) Transition(context.Context, string, State, State, string) {}
func (NotifyObserver) ArtifactProduced(context.Context, string, podcast.Artifact) {}

func (o NotifyObserver) RunFinished(ctx context.Context, res Result, err error) {
	if err := o.Notifier.Notify(context.WithoutCancel(ctx), Summary(res, err)); err != nil {
		utils.Warn("notify failed", "run", res.RunID, "err", err)
	}
}

// Summary is the one-line description of a finished run.
func Summary(res Result, err error) string {
	if err != nil {
		return fmt.Sprintf(":x: clipcast run %s failed: %v", res.RunID, err)
	}
	if res.Captioned {
		return fmt.Sprintf(":white_check_mark: clipcast run %s done (captioned): %s", res.RunID, res.FinalVideoPath)
	}
	if res.CaptionErr != "" {
		return fmt.Sprintf(":warning: clipcast run %s done without captions (%s): %s", res.RunID, res.CaptionErr, res.FinalVideoPath)
	}
	return fmt.Sprintf(":white_check_mark: clipcast run %s done: %s", res.RunID, res.FinalVideoPath)
}
