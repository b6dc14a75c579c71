package compositor

import (
	"context"
	"errors"
	"regexp"
	"strconv"
)

var durationRegex = regexp.MustCompile(`Duration: (\d+):(\d+):(\d+\.\d+)`)

// ProbeDuration reads a media file's duration in seconds from ffmpeg's banner.
// ffmpeg exits non-zero without an output file, so only the stderr is used.
func (c *Compositor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	res, _ := c.run(ctx, c.opts.FFmpeg, "-hide_banner", "-i", path)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return parseDuration(res.Stderr)
}

func parseDuration(output string) (float64, error) {
	matches := durationRegex.FindStringSubmatch(output)
	if len(matches) < 4 {
		return 0, errors.New("duration not found")
	}
	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	return float64(hours*3600+minutes*60) + seconds, nil
}
