// Package subtitles reads and writes SubRip (.srt) sidecars for composed
// dialogue videos.
package subtitles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ai-things/clipcast/internal/utils"
)

type Caption struct {
	StartTime string
	EndTime   string
	Text      string
}

// Line is one spoken segment and how long it plays in the composed video.
type Line struct {
	Speaker  string
	Text     string
	Duration time.Duration
}

var (
	timeRegex     = regexp.MustCompile(`(\d\d:\d\d:\d\d,\d\d\d)\s-->\s(\d\d:\d\d:\d\d,\d\d\d)`)
	blockSplit    = regexp.MustCompile(`\r?\n\r?\n+`)
	audioTagRegex = regexp.MustCompile(`\[[^\[\]]*\]`)
	spaceRegex    = regexp.MustCompile(`[ \t]+`)
)

func ParseSRT(input string) []Caption {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	blocks := blockSplit.Split(trimmed, -1)
	captions := make([]Caption, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Split(NormalizeText(block), "\n")
		if len(lines) < 2 {
			continue
		}
		// index line, then time range
		matches := timeRegex.FindStringSubmatch(lines[1])
		if len(matches) < 3 {
			continue
		}
		text := ""
		if len(lines) > 2 {
			text = strings.Join(lines[2:], "\n")
		}
		captions = append(captions, Caption{
			StartTime: matches[1],
			EndTime:   matches[2],
			Text:      strings.TrimRight(text, "\n"),
		})
	}
	return captions
}

func SerializeSRT(captions []Caption) string {
	var builder strings.Builder
	for idx, caption := range captions {
		builder.WriteString(strconv.Itoa(idx + 1))
		builder.WriteString("\n")
		builder.WriteString(caption.StartTime)
		builder.WriteString(" --> ")
		builder.WriteString(caption.EndTime)
		builder.WriteString("\n")
		builder.WriteString(caption.Text)
		builder.WriteString("\n\n")
	}
	return builder.String()
}

func NormalizeText(input string) string {
	text := strings.ReplaceAll(input, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimRight(text, "\n")
}

// FormatTimestamp renders d as HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// StripAudioTags removes voice-direction tags like "[excited]" from text.
func StripAudioTags(text string) string {
	out := audioTagRegex.ReplaceAllString(text, "")
	out = spaceRegex.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// BuildDialogue lays lines back to back starting at zero. Lines that are
// empty once tags are stripped still advance the clock.
func BuildDialogue(lines []Line) []Caption {
	captions := make([]Caption, 0, len(lines))
	var at time.Duration
	for _, line := range lines {
		start := at
		at += line.Duration
		text := StripAudioTags(line.Text)
		if text == "" || line.Duration <= 0 {
			continue
		}
		if line.Speaker != "" {
			text = line.Speaker + ": " + text
		}
		captions = append(captions, Caption{
			StartTime: FormatTimestamp(start),
			EndTime:   FormatTimestamp(at),
			Text:      text,
		})
	}
	return captions
}

// WriteSRT writes captions to path atomically.
func WriteSRT(path string, captions []Caption) error {
	return utils.WriteFileAtomic(path, strings.NewReader(SerializeSRT(captions)))
}
