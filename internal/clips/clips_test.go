package clips

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"ai-things/clipcast/internal/podcast"
)

const sampleJSON = `{
  "topic": "nutrition",
  "audience": "busy people",
  "clips_ranked": [
    {
      "rank": 1,
      "start_time": "00:00:00",
      "end_time": "00:00:30",
      "hook_text": "hi",
      "dialogue_lines": [
        {"speaker": "Speaker A", "text": "hi"},
        {"speaker": "Speaker B", "text": "   "},
        {"speaker": "Speaker A", "text": "bye"}
      ],
      "relevance_score_0_1": 0.9
    },
    {
      "rank": 2,
      "dialogue_lines": [
        {"speaker": "Speaker A", "text": ""}
      ]
    }
  ]
}`

func TestSegmentsDropsEmptyLinesAndRenumbers(t *testing.T) {
	set, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := set.Segments(0)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	want := []podcast.Segment{
		{Index: 0, Speaker: podcast.Person1, Text: "hi"},
		{Index: 1, Speaker: podcast.Person1, Text: "bye"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Segments = %+v, want %+v", got, want)
	}
}

func TestSegmentsNoDialogue(t *testing.T) {
	set, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, idx := range []int{1, 2, -1} {
		_, err := set.Segments(idx)
		var noDialogue *NoDialogueError
		if !errors.As(err, &noDialogue) {
			t.Fatalf("index %d: expected NoDialogueError, got %v", idx, err)
		}
		if noDialogue.ClipIndex != idx {
			t.Fatalf("index %d: error reports clip %d", idx, noDialogue.ClipIndex)
		}
	}
}

func TestMapSpeaker(t *testing.T) {
	cases := map[string]podcast.Speaker{
		"Speaker A": podcast.Person1,
		"Speaker B": podcast.Person2,
		"Host":      "Host",
		"":          "unknown",
	}
	for label, want := range cases {
		if got := MapSpeaker(label); got != want {
			t.Fatalf("MapSpeaker(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestClampIndex(t *testing.T) {
	set := Set{Clips: make([]Clip, 2)}
	if idx, clamped := set.ClampIndex(1); idx != 1 || clamped {
		t.Fatalf("in-range index changed: %d %v", idx, clamped)
	}
	if idx, clamped := set.ClampIndex(5); idx != 0 || !clamped {
		t.Fatalf("out-of-range index not clamped: %d %v", idx, clamped)
	}
}

func TestParseRejectsMissingClips(t *testing.T) {
	if _, err := Parse([]byte(`{"topic":"x"}`)); err == nil {
		t.Fatal("expected error for missing clips_ranked")
	}
}

func TestSaveAndLoad(t *testing.T) {
	set, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "generated_clips.json")
	if err := Save(path, set); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Clips) != 2 || loaded.Topic != "nutrition" {
		t.Fatalf("unexpected loaded set %+v", loaded)
	}
}
