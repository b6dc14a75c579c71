// Package compositor concatenates per-segment videos into one file with ffmpeg.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/utils"
)

const (
	DefaultWidth  = 720
	DefaultHeight = 1280
)

// EmptyInputError means there was nothing to compose.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string { return "compose: no video artifacts" }

// CompositionError is a compositor process that exited non-zero.
type CompositionError struct {
	ExitCode   int
	Diagnostic string
	Command    string
}

// Error carries the full diagnostic. ffmpeg prints the cause before its
// generic last line, so nothing is cut.
func (e *CompositionError) Error() string {
	diag := strings.TrimSpace(e.Diagnostic)
	if diag == "" {
		return fmt.Sprintf("compose: ffmpeg exited with code %d", e.ExitCode)
	}
	if !strings.Contains(diag, "\n") {
		return fmt.Sprintf("compose: ffmpeg exited with code %d: %s", e.ExitCode, diag)
	}
	return fmt.Sprintf("compose: ffmpeg exited with code %d:\n\t%s", e.ExitCode, strings.ReplaceAll(diag, "\n", "\n\t"))
}

type commandRunner func(ctx context.Context, name string, args ...string) (utils.CommandResult, error)

type Options struct {
	Width  int
	Height int
	FFmpeg string
}

type Compositor struct {
	opts Options
	run  commandRunner
}

func New(opts Options) *Compositor {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	return &Compositor{opts: opts, run: utils.RunCommand}
}

// FilterGraph normalizes each of n inputs to w x h (scale down, letterbox,
// square pixels) and concatenates video and first audio stream in input order.
func FilterGraph(n, w, h int) string {
	parts := make([]string, 0, n+1)
	var concat strings.Builder
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1[v%d]",
			i, w, h, w, h, i,
		))
		fmt.Fprintf(&concat, "[v%d][%d:a:0]", i, i)
	}
	fmt.Fprintf(&concat, "concat=n=%d:v=1:a=1[outv][outa]", n)
	parts = append(parts, concat.String())
	return strings.Join(parts, ";")
}

// Args builds the ffmpeg argument list for already sorted videos.
func (c *Compositor) Args(sorted []podcast.Artifact, output string) []string {
	args := []string{"-y", "-hide_banner"}
	for _, v := range sorted {
		path := v.Path
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		args = append(args, "-i", path)
	}
	args = append(args,
		"-filter_complex", FilterGraph(len(sorted), c.opts.Width, c.opts.Height),
		"-map", "[outv]",
		"-map", "[outa]",
		output,
	)
	return args
}

// Compose sorts videos by segment index and writes the concatenation to
// output. The result is staged next to output and renamed on success.
func (c *Compositor) Compose(ctx context.Context, videos []podcast.Artifact, output string) (string, error) {
	if len(videos) == 0 {
		return "", &EmptyInputError{}
	}
	sorted := podcast.SortArtifacts(videos)

	if err := utils.EnsureDir(filepath.Dir(output)); err != nil {
		return "", err
	}
	ext := filepath.Ext(output)
	staging := strings.TrimSuffix(output, ext) + ".partial" + ext

	args := c.Args(sorted, staging)
	start := time.Now()
	utils.Info("compose start", "segments", len(sorted), "output", output, "resolution", fmt.Sprintf("%dx%d", c.opts.Width, c.opts.Height))

	res, err := c.run(ctx, c.opts.FFmpeg, args...)
	if err != nil {
		_ = os.Remove(staging)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if res.ExitCode == 0 {
			return "", fmt.Errorf("compose: run %s: %w", c.opts.FFmpeg, err)
		}
		return "", &CompositionError{
			ExitCode:   res.ExitCode,
			Diagnostic: res.Stderr,
			Command:    utils.ShellJoin(c.opts.FFmpeg, args...),
		}
	}
	if err := os.Rename(staging, output); err != nil {
		_ = os.Remove(staging)
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("compose: ffmpeg reported success but wrote no output: %w", err)
		}
		return "", err
	}
	utils.Info("compose done", "output", output, "dur", time.Since(start).Truncate(time.Millisecond).String())
	return output, nil
}
