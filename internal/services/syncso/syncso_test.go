package syncso

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/utils"
)

func init() {
	utils.SetLogOutput(io.Discard)
}

func writeInputs(t *testing.T) podcast.LipSyncRequest {
	t.Helper()
	dir := t.TempDir()
	video := filepath.Join(dir, "man_1.mp4")
	audio := filepath.Join(dir, "seg-000-person1.mp3")
	_ = os.WriteFile(video, []byte("base-video"), 0o644)
	_ = os.WriteFile(audio, []byte("segment-audio"), 0o644)
	return podcast.LipSyncRequest{SegmentIndex: 0, Speaker: podcast.Person1, VideoPath: video, AudioPath: audio}
}

func TestLipSyncPollsUntilCompleted(t *testing.T) {
	var polls atomic.Int32
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sync-key" && r.URL.Path != "/files/out.mp4" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/generate":
			if r.FormValue("model") != "lipsync-2" {
				http.Error(w, "model", http.StatusBadRequest)
				return
			}
			if _, _, err := r.FormFile("video"); err != nil {
				http.Error(w, "video", http.StatusBadRequest)
				return
			}
			if _, _, err := r.FormFile("audio"); err != nil {
				http.Error(w, "audio", http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(generation{ID: "gen-1", Status: "PENDING"})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/generate/gen-1":
			n := polls.Add(1)
			switch n {
			case 1:
				_ = json.NewEncoder(w).Encode(generation{ID: "gen-1", Status: "PENDING"})
			case 2:
				_ = json.NewEncoder(w).Encode(generation{ID: "gen-1", Status: "PROCESSING"})
			default:
				_ = json.NewEncoder(w).Encode(generation{ID: "gen-1", Status: "COMPLETED", OutputURL: srvURL + "/files/out.mp4"})
			}
		case r.URL.Path == "/files/out.mp4":
			_, _ = io.WriteString(w, "synced-video")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	backend := New(Options{APIKey: "sync-key", BaseURL: srv.URL, Timeout: time.Second})
	dest := filepath.Join(t.TempDir(), "video", "seg-000-person1.mp4")
	out, err := jobclient.Run(context.Background(), jobclient.NewDriver(time.Millisecond, 10), backend, writeInputs(t), dest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Kind != jobclient.OutcomeCompleted || out.Attempts != 3 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "synced-video" {
		t.Fatalf("unexpected video %q", data)
	}
}

func TestLipSyncFailedCarriesReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = json.NewEncoder(w).Encode(generation{ID: "gen-2"})
			return
		}
		_ = json.NewEncoder(w).Encode(generation{ID: "gen-2", Status: "REJECTED", Error: "face not detected"})
	}))
	defer srv.Close()

	backend := New(Options{APIKey: "sync-key", BaseURL: srv.URL, Timeout: time.Second})
	_, err := jobclient.Await(context.Background(), jobclient.NewDriver(time.Millisecond, 5), backend, writeInputs(t), filepath.Join(t.TempDir(), "out.mp4"))
	var failed *jobclient.JobFailedError
	if !errors.As(err, &failed) || failed.Reason != "face not detected" {
		t.Fatalf("expected JobFailedError with reason, got %v", err)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]jobclient.Status{
		"PENDING":    jobclient.StatusPending,
		"PROCESSING": jobclient.StatusRunning,
		"COMPLETED":  jobclient.StatusCompleted,
		"FAILED":     jobclient.StatusFailed,
		"CANCELED":   jobclient.StatusFailed,
		"error":      jobclient.StatusFailed,
		"":           jobclient.StatusPending,
	}
	for raw, want := range cases {
		if got := normalizeStatus(raw); got != want {
			t.Fatalf("normalizeStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}
