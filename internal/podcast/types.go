// Package podcast turns dialogue segments into per-segment audio and lip-synced
// video artifacts and optionally captions the composed result.
package podcast

import (
	"fmt"
	"path/filepath"
	"sort"
)

type Speaker string

const (
	Person1 Speaker = "person1"
	Person2 Speaker = "person2"
)

// Segment is one spoken line. Index is dense and zero based.
type Segment struct {
	Index   int
	Speaker Speaker
	Text    string
}

type ArtifactKind string

const (
	KindAudio ArtifactKind = "audio"
	KindVideo ArtifactKind = "video"
)

// Artifact is a file produced for one segment.
type Artifact struct {
	SegmentIndex int
	Speaker      Speaker
	Path         string
	Kind         ArtifactKind
}

// ArtifactPath is the deterministic location of a segment's artifact under dir.
func ArtifactPath(dir string, kind ArtifactKind, index int, speaker Speaker) string {
	ext := ".mp3"
	if kind == KindVideo {
		ext = ".mp4"
	}
	return filepath.Join(dir, string(kind), fmt.Sprintf("seg-%03d-%s%s", index, speaker, ext))
}

// SortArtifacts returns a copy ordered by ascending segment index.
func SortArtifacts(in []Artifact) []Artifact {
	out := append([]Artifact(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SegmentIndex < out[j].SegmentIndex })
	return out
}

// Speakers lists the distinct speakers of segments in first-seen order.
func Speakers(segments []Segment) []Speaker {
	seen := map[Speaker]bool{}
	out := []Speaker{}
	for _, seg := range segments {
		if seen[seg.Speaker] {
			continue
		}
		seen[seg.Speaker] = true
		out = append(out, seg.Speaker)
	}
	return out
}
