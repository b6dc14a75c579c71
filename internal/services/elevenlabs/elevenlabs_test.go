package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/utils"
)

func init() {
	utils.SetLogOutput(io.Discard)
}

func TestSpeechJobWritesAudio(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v1/text-to-speech/voice-a" || r.URL.Query().Get("output_format") != "mp3_44100_128" {
			http.Error(w, "bad path "+r.URL.String(), http.StatusBadRequest)
			return
		}
		if r.Header.Get("xi-api-key") != "el-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body ttsRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ModelID != "eleven_v3" || body.Text != "[excited] Hello there" {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = io.WriteString(w, "ID3-audio")
	}))
	defer srv.Close()

	backend := New(Options{APIKey: "el-key", BaseURL: srv.URL, Timeout: time.Second})
	dest := filepath.Join(t.TempDir(), "audio", "seg-000-person1.mp3")
	req := podcast.SpeechRequest{SegmentIndex: 0, Speaker: podcast.Person1, VoiceID: "voice-a", Text: "[excited] Hello there"}

	path, err := jobclient.Await(context.Background(), jobclient.NewDriver(time.Millisecond, 3), backend, req, dest)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "ID3-audio" {
		t.Fatalf("unexpected audio %q", data)
	}
	if calls != 1 {
		t.Fatalf("expected one synthesis call, got %d", calls)
	}
	if len(backend.results) != 0 {
		t.Fatal("fetched audio should be released")
	}
}

func TestSpeechRejectedIsSubmissionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"voice not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	backend := New(Options{APIKey: "el-key", BaseURL: srv.URL, Timeout: time.Second})
	req := podcast.SpeechRequest{SegmentIndex: 2, Speaker: podcast.Person2, VoiceID: "nope", Text: "hi"}
	_, err := jobclient.Await(context.Background(), jobclient.NewDriver(time.Millisecond, 3), backend, req, filepath.Join(t.TempDir(), "x.mp3"))
	var subErr *jobclient.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
}

func TestPollUnknownJobFails(t *testing.T) {
	backend := New(Options{APIKey: "k"})
	res, err := backend.Poll(context.Background(), jobclient.Handle{ID: "missing"})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Status != jobclient.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
}

func TestDiscardReleasesUnfetchedAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ID3-audio")
	}))
	defer srv.Close()

	backend := New(Options{APIKey: "el-key", BaseURL: srv.URL, Timeout: time.Second})
	req := podcast.SpeechRequest{SegmentIndex: 1, Speaker: podcast.Person2, VoiceID: "voice-b", Text: "Bye"}
	h, err := backend.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(backend.results) != 1 {
		t.Fatalf("expected audio held after submit, got %d entries", len(backend.results))
	}

	backend.Discard(h)
	if len(backend.results) != 0 {
		t.Fatal("discarded audio still held")
	}
	res, err := backend.Poll(context.Background(), h)
	if err != nil || res.Status != jobclient.StatusFailed {
		t.Fatalf("poll after discard = %+v, %v", res, err)
	}
}

func TestCancelledRunReleasesAudio(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ID3-audio")
	}))
	defer srv.Close()

	backend := New(Options{APIKey: "el-key", BaseURL: srv.URL, Timeout: time.Second})
	req := podcast.SpeechRequest{SegmentIndex: 0, Speaker: podcast.Person1, VoiceID: "voice-a", Text: "Hi"}
	_, err := jobclient.Run(ctx, jobclient.NewDriver(time.Millisecond, 3), cancelOnPoll{Backend: backend, cancel: cancel}, req, filepath.Join(t.TempDir(), "a.mp3"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(backend.results) != 0 {
		t.Fatalf("cancelled job left %d audio buffers behind", len(backend.results))
	}
}

// cancelOnPoll cancels the run right after Submit, before anything is fetched.
type cancelOnPoll struct {
	*Backend
	cancel context.CancelFunc
}

func (c cancelOnPoll) Poll(ctx context.Context, h jobclient.Handle) (jobclient.PollResult, error) {
	c.cancel()
	return jobclient.PollResult{Status: jobclient.StatusPending}, nil
}
