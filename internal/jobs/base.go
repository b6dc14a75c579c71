// Package jobs runs the pipeline once or as a queue worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-things/clipcast/internal/config"
	"ai-things/clipcast/internal/pipeline"
	"ai-things/clipcast/internal/queue"
	"ai-things/clipcast/internal/utils"
)

// MessageQueue is the part of queue.Client the worker uses.
type MessageQueue interface {
	Pop(queueName string) (*queue.Message, error)
	PublishJSON(ctx context.Context, queueName string, v any) error
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type JobContext struct {
	Config config.Config
	Queue  MessageQueue
	Runner Runner
}

type JobOptions struct {
	Request   pipeline.Request
	Queue     bool
	QueueOnce bool
	// Sleep is the pause after an empty poll.
	Sleep     time.Duration
	// LockWait bounds how long a run waits for the work dir lock; zero fails fast.
	LockWait  time.Duration
}

type BaseJob struct {
	QueueInput  string
	QueueOutput string
	QueueFailed string
}

// RequestPayload is the JSON body of a queued pipeline request.
type RequestPayload struct {
	WebsiteURL     string   `json:"website_url"`
	TranscriptPath string   `json:"transcript_path"`
	ClipIndex      int      `json:"clip_index"`
	ClipMax        int      `json:"clip_max"`
	Whitelist      []string `json:"whitelist"`
	Blacklist      []string `json:"blacklist"`
}

func (p RequestPayload) validate() error {
	if strings.TrimSpace(p.WebsiteURL) == "" {
		return fmt.Errorf("missing website_url")
	}
	if strings.TrimSpace(p.TranscriptPath) == "" {
		return fmt.Errorf("missing transcript_path")
	}
	if p.ClipIndex < 0 || p.ClipMax < 0 {
		return fmt.Errorf("negative clip_index or clip_max")
	}
	return nil
}

func (p RequestPayload) Request() pipeline.Request {
	return pipeline.Request{
		WebsiteURL:     p.WebsiteURL,
		TranscriptPath: p.TranscriptPath,
		ClipIndex:      p.ClipIndex,
		ClipMax:        p.ClipMax,
		Whitelist:      p.Whitelist,
		Blacklist:      p.Blacklist,
	}
}

// QueueHandler processes one valid request. A returned error requeues the message.
type QueueHandler func(ctx context.Context, req pipeline.Request) error

func (b BaseJob) RunQueue(ctx context.Context, jctx JobContext, opts JobOptions, handler QueueHandler) error {
	if jctx.Queue == nil {
		return fmt.Errorf("queue client is not configured")
	}

	sleep := opts.Sleep
	if sleep <= 0 {
		sleep = 30 * time.Second
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := jctx.Queue.Pop(b.QueueInput)
		if err != nil {
			return err
		}
		if msg == nil {
			if opts.QueueOnce {
				return nil
			}
			utils.Debug("queue empty", "queue", b.QueueInput, "sleep", sleep.String())
			if err := sleepContext(ctx, sleep); err != nil {
				return err
			}
			continue
		}

		var payload RequestPayload
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			utils.Warn("queue payload json decode failed", "queue", b.QueueInput, "err", err)
			_ = msg.Ack()
			continue
		}
		if err := payload.validate(); err != nil {
			utils.Warn("queue payload invalid", "queue", b.QueueInput, "err", err)
			_ = msg.Ack()
			continue
		}

		if err := handler(ctx, payload.Request()); err != nil {
			utils.Error("queue handler error", "queue", b.QueueInput, "url", payload.WebsiteURL, "err", err)
			_ = msg.Nack(true)
			continue
		}
		_ = msg.Ack()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
