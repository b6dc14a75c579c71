package podcast

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/utils"
)

// CaptionRequest names the composed video to caption.
type CaptionRequest struct {
	VideoPath string
}

// CaptionResult is what the pipeline delivers after the optional captioning step.
type CaptionResult struct {
	Path      string
	Captioned bool
	// Err is the absorbed captioning failure, nil when captioned or disabled.
	Err error
}

type CaptionStage struct {
	Backend jobclient.Backend[CaptionRequest]
	Driver  jobclient.Driver
	Enabled bool
}

// CaptionedPath is "<dir>/<base>_captioned.mp4" for a composed video.
func CaptionedPath(composed string) string {
	base := strings.TrimSuffix(filepath.Base(composed), filepath.Ext(composed))
	return filepath.Join(filepath.Dir(composed), base+"_captioned.mp4")
}

// Run captions composed. Job failures, timeouts, submission and download
// errors are absorbed and the uncaptioned path is returned instead. Only a
// cancelled context is reported as an error.
func (s CaptionStage) Run(ctx context.Context, composed string) (CaptionResult, error) {
	if !s.Enabled || s.Backend == nil {
		utils.Info("captions disabled", "video", composed)
		return CaptionResult{Path: composed}, nil
	}

	dest := CaptionedPath(composed)
	path, err := jobclient.Await(ctx, s.Driver, s.Backend, CaptionRequest{VideoPath: composed}, dest)
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return CaptionResult{}, err
		}
		utils.Warn("captioning failed, using uncaptioned video", "video", composed, "err", err)
		return CaptionResult{Path: composed, Err: err}, nil
	}
	utils.Info("captioned video ready", "path", path)
	return CaptionResult{Path: path, Captioned: true}, nil
}
