package podcast

import "fmt"

// UnknownSpeakerError is a segment whose speaker has no configured voice.
type UnknownSpeakerError struct {
	SegmentIndex int
	Speaker      Speaker
}

func (e *UnknownSpeakerError) Error() string {
	return fmt.Sprintf("segment %d: no voice configured for speaker %q", e.SegmentIndex, e.Speaker)
}

// MissingAssetError is a speaker whose base video is not configured or not on disk.
type MissingAssetError struct {
	Speaker Speaker
	Path    string
}

func (e *MissingAssetError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("no base video configured for speaker %q", e.Speaker)
	}
	return fmt.Sprintf("base video for speaker %q not found at %s", e.Speaker, e.Path)
}

// SegmentError attaches the failing segment to a stage error.
type SegmentError struct {
	SegmentIndex int
	Speaker      Speaker
	Err          error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d (%s): %v", e.SegmentIndex, e.Speaker, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// IndexError is a stage input whose segment indices are not exactly 0..n-1.
type IndexError struct {
	Index  int
	Reason string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("segment index %d: %s", e.Index, e.Reason)
}

// checkIndices requires indices to be a permutation of 0..len-1. Artifact
// paths derive from the index, so a duplicate would be written twice.
func checkIndices(indices []int) error {
	seen := make([]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(indices) {
			return &IndexError{Index: idx, Reason: fmt.Sprintf("out of range for %d segments", len(indices))}
		}
		if seen[idx] {
			return &IndexError{Index: idx, Reason: "duplicate"}
		}
		seen[idx] = true
	}
	return nil
}
