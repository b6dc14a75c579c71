package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ai-things/clipcast/internal/jobs"
	"ai-things/clipcast/internal/pipeline"
	"ai-things/clipcast/internal/queue"
	"ai-things/clipcast/internal/utils"
)

func newPipelineRunCommand(cctx *commandContext) *cobra.Command {
	var (
		req       pipeline.Request
		clipIndex int
		workDir   string
		outputDir string
		lockWait  time.Duration
		noPrompt  bool
	)

	cmd := &cobra.Command{
		Use:   "pipeline:run [website_url] [transcript_file]",
		Short: "Run the full pipeline once",
		Long: "Scrape and analyze the website, pick a clip from the transcript, voice and lip-sync it,\n" +
			"compose the final video and caption it. With --clips the analysis steps are skipped.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer cctx.close()
			cfg, err := cctx.config()
			if err != nil {
				return err
			}
			if workDir != "" {
				cfg.App.WorkDir = workDir
			}
			if outputDir != "" {
				cfg.App.OutputDir = outputDir
			}
			if cmd.Flags().Changed("clip-index") {
				req.ClipIndex = clipIndex
			} else {
				req.ClipIndex = cfg.Pipeline.ClipIndex
			}
			if len(args) > 0 {
				req.WebsiteURL = args[0]
			}
			if len(args) > 1 {
				req.TranscriptPath = args[1]
			}
			if err := validateRunRequest(req); err != nil {
				return err
			}
			if err := cfg.RequireKeys(requiredKeys(req.ClipsPath != "")...); err != nil {
				return err
			}

			orch, err := cctx.newOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			job := jobs.NewPipelineJob(cfg)
			jctx := jobs.JobContext{Config: cfg, Runner: orch}

			utils.Info("pipeline start", "url", req.WebsiteURL, "transcript", req.TranscriptPath, "clips", req.ClipsPath, "clip_index", req.ClipIndex)
			res, err := job.RunOnce(cmd.Context(), jctx, req, lockWait)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, pipeline.Summary(res, nil))
			fmt.Fprintf(out, "final video: %s\n", res.FinalVideoPath)
			if res.SubtitlePath != "" {
				fmt.Fprintf(out, "subtitles:   %s\n", res.SubtitlePath)
			}
			for _, t := range res.Timings {
				utils.Debug("stage timing", "stage", t.Stage, "dur", t.Duration.Truncate(time.Millisecond).String())
			}

			if !noPrompt && isTerminal(cctx.in) {
				return cleanupRunDir(cctx, res.RunDir)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.ClipsPath, "clips", "", "Use a ready clips JSON file instead of analyzing a website")
	flags.StringVar(&req.AppName, "app-name", "", "App name used for the output file name")
	flags.IntVar(&clipIndex, "clip-index", 0, "Which clip to use (0 = top-ranked)")
	flags.IntVar(&req.ClipMax, "clip-max", 0, "Maximum clips to generate (default from config)")
	flags.StringSliceVar(&req.Whitelist, "whitelist", nil, "Keywords to prioritize")
	flags.StringSliceVar(&req.Blacklist, "blacklist", nil, "Keywords to avoid")
	flags.StringVar(&req.ExtraContext, "extra-context", "", "Extra background for the website analysis")
	flags.StringVar(&workDir, "work-dir", "", "Working directory (default from config)")
	flags.StringVar(&outputDir, "output-dir", "", "Output directory (default from config)")
	flags.DurationVar(&lockWait, "lock-wait", 0, "How long to wait for a busy work dir")
	flags.BoolVar(&noPrompt, "no-prompt", false, "Do not offer to clean up the run directory")

	return cmd
}

func validateRunRequest(req pipeline.Request) error {
	if req.ClipsPath != "" {
		if !utils.FileExists(req.ClipsPath) {
			return fmt.Errorf("clips file not found: %s", req.ClipsPath)
		}
		return nil
	}
	if req.WebsiteURL == "" || req.TranscriptPath == "" {
		return errors.New("website_url and transcript_file are required unless --clips is given")
	}
	if !strings.HasPrefix(req.WebsiteURL, "http://") && !strings.HasPrefix(req.WebsiteURL, "https://") {
		return fmt.Errorf("website url must start with http:// or https://: %s", req.WebsiteURL)
	}
	if !utils.FileExists(req.TranscriptPath) {
		return fmt.Errorf("transcript file not found: %s", req.TranscriptPath)
	}
	return nil
}

func cleanupRunDir(cctx *commandContext, dir string) error {
	if dir == "" || !utils.DirExists(dir) {
		return nil
	}
	ok, err := utils.Confirm(cctx.in, cctx.out, fmt.Sprintf("Clean up temporary files in %s?", dir))
	if err != nil || !ok {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean up %s: %w", dir, err)
	}
	fmt.Fprintf(cctx.out, "removed %s\n", dir)
	return nil
}

func newPipelineWorkerCommand(cctx *commandContext) *cobra.Command {
	var (
		queueOnce bool
		sleep     time.Duration
		lockWait  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "pipeline:worker",
		Short: "Consume pipeline requests from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer cctx.close()
			cfg, err := cctx.config()
			if err != nil {
				return err
			}
			if err := cfg.RequireKeys(requiredKeys(false)...); err != nil {
				return err
			}
			orch, err := cctx.newOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			queueClient, err := queue.New(cfg.RabbitMQURL())
			if err != nil {
				return fmt.Errorf("queue: %w", err)
			}
			defer queueClient.Close()

			job := jobs.NewPipelineJob(cfg)
			jctx := jobs.JobContext{Config: cfg, Queue: queueClient, Runner: orch}
			utils.Info("worker start", "queue", job.QueueInput, "ready", job.QueueOutput, "failed", job.QueueFailed, "once", queueOnce)
			return job.Run(cmd.Context(), jctx, jobs.JobOptions{
				Queue:     true,
				QueueOnce: queueOnce,
				Sleep:     sleep,
				LockWait:  lockWait,
			})
		},
	}

	cmd.Flags().BoolVar(&queueOnce, "queue-once", false, "Stop after the queue is empty once")
	cmd.Flags().DurationVar(&sleep, "sleep", 30*time.Second, "Pause after an empty poll")
	cmd.Flags().DurationVar(&lockWait, "lock-wait", 10*time.Minute, "How long to wait for a busy work dir")

	return cmd
}
