package jobs

import (
	"context"
	"errors"
	"time"

	"ai-things/clipcast/internal/config"
	"ai-things/clipcast/internal/pipeline"
	"ai-things/clipcast/internal/utils"
)

type PipelineJob struct {
	BaseJob
}

func NewPipelineJob(cfg config.Config) PipelineJob {
	return PipelineJob{
		BaseJob: BaseJob{
			QueueInput:  cfg.RabbitMQ.RequestQueue,
			QueueOutput: cfg.RabbitMQ.ReadyQueue,
			QueueFailed: cfg.RabbitMQ.FailedQueue,
		},
	}
}

// ReadyEvent is published when a run finishes.
type ReadyEvent struct {
	RunID          string `json:"run_id"`
	FinalVideoPath string `json:"final_video_path"`
	Captioned      bool   `json:"captioned"`
	Hostname       string `json:"hostname,omitempty"`
}

// FailedEvent is published when a run ends in the failed state.
type FailedEvent struct {
	RunID        string `json:"run_id"`
	Stage        string `json:"stage"`
	SegmentIndex *int   `json:"segment_index,omitempty"`
	Error        string `json:"error"`
	Hostname     string `json:"hostname,omitempty"`
}

func (j PipelineJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if opts.Queue {
		return j.RunQueue(ctx, jctx, opts, func(ctx context.Context, req pipeline.Request) error {
			return j.process(ctx, jctx, opts, req)
		})
	}
	_, err := j.RunOnce(ctx, jctx, opts.Request, opts.LockWait)
	return err
}

// RunOnce runs req while holding the work dir lock.
func (j PipelineJob) RunOnce(ctx context.Context, jctx JobContext, req pipeline.Request, lockWait time.Duration) (pipeline.Result, error) {
	lock, err := AcquireWorkDir(ctx, jctx.Config.App.WorkDir, lockWait)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer lock.Release()
	return jctx.Runner.Run(ctx, req)
}

// process turns one queued request into a ready or failed event. Only
// infrastructure problems before the run finishes are returned, which
// requeues the request.
func (j PipelineJob) process(ctx context.Context, jctx JobContext, opts JobOptions, req pipeline.Request) error {
	res, err := j.RunOnce(ctx, jctx, req, opts.LockWait)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var stageErr *pipeline.StageError
	switch {
	case err == nil:
		j.publish(ctx, jctx, j.QueueOutput, ReadyEvent{
			RunID:          res.RunID,
			FinalVideoPath: res.FinalVideoPath,
			Captioned:      res.Captioned,
			Hostname:       jctx.Config.App.Hostname,
		})
		return nil
	case errors.As(err, &stageErr):
		event := FailedEvent{
			RunID:    res.RunID,
			Stage:    string(stageErr.Stage),
			Error:    stageErr.Err.Error(),
			Hostname: jctx.Config.App.Hostname,
		}
		if stageErr.SegmentIndex != pipeline.NoSegment {
			idx := stageErr.SegmentIndex
			event.SegmentIndex = &idx
		}
		utils.Warn("pipeline run failed", "run", res.RunID, "stage", stageErr.Stage, "err", stageErr.Err)
		j.publish(ctx, jctx, j.QueueFailed, event)
		return nil
	default:
		return err
	}
}

// publish reports a lost event instead of failing the delivery. The run has
// already happened; requeueing would pay for it again.
func (j PipelineJob) publish(ctx context.Context, jctx JobContext, queue string, event any) {
	if err := jctx.Queue.PublishJSON(ctx, queue, event); err != nil {
		utils.Error("publish run event failed", "queue", queue, "event", event, "err", err)
	}
}
