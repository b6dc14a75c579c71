package zapcap

import (
	"context"
	"encoding/json"
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

func composedVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final.mp4")
	if err := os.WriteFile(path, []byte("composed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestCaptionTaskLifecycle(t *testing.T) {
	var polls atomic.Int32
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/videos":
			if r.Header.Get("x-api-key") != "zc-key" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, _, err := r.FormFile("file"); err != nil {
				http.Error(w, "file", http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, `{"id":"vid-9"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/videos/vid-9/task":
			var body taskRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.TemplateID != "tpl" || !body.AutoApprove || body.Language != "en" {
				http.Error(w, "task body", http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, `{"taskId":"task-3"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/videos/vid-9/task/task-3":
			if polls.Add(1) < 2 {
				_, _ = io.WriteString(w, `{"status":"transcribing"}`)
				return
			}
			_ = json.NewEncoder(w).Encode(taskStatus{Status: "completed", DownloadURL: srvURL + "/dl"})
		case r.URL.Path == "/dl":
			_, _ = io.WriteString(w, "captioned")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	composed := composedVideo(t)
	stage := podcast.CaptionStage{
		Backend: New(Options{APIKey: "zc-key", BaseURL: srv.URL, TemplateID: "tpl", Timeout: time.Second}),
		Driver:  jobclient.NewDriver(time.Millisecond, 5),
		Enabled: true,
	}
	res, err := stage.Run(context.Background(), composed)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Captioned || res.Path != podcast.CaptionedPath(composed) {
		t.Fatalf("unexpected result %+v", res)
	}
	data, _ := os.ReadFile(res.Path)
	if string(data) != "captioned" {
		t.Fatalf("unexpected captioned content %q", data)
	}
}

func TestCaptionFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/videos":
			_, _ = io.Copy(io.Discard, r.Body)
			_, _ = io.WriteString(w, `{"id":"v"}`)
		case r.URL.Path == "/videos/v/task":
			_, _ = io.WriteString(w, `{"taskId":"t"}`)
		default:
			_, _ = io.WriteString(w, `{"status":"failed","error":"no speech detected"}`)
		}
	}))
	defer srv.Close()

	composed := composedVideo(t)
	stage := podcast.CaptionStage{
		Backend: New(Options{APIKey: "zc-key", BaseURL: srv.URL, TemplateID: "tpl", Timeout: time.Second}),
		Driver:  jobclient.NewDriver(time.Millisecond, 5),
		Enabled: true,
	}
	res, err := stage.Run(context.Background(), composed)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Captioned || res.Path != composed || res.Err == nil {
		t.Fatalf("expected fallback to composed video, got %+v", res)
	}
}

func TestPollRejectsMalformedHandle(t *testing.T) {
	b := New(Options{APIKey: "k"})
	if _, err := b.Poll(context.Background(), jobclient.Handle{ID: "no-slash"}); err == nil {
		t.Fatal("expected error")
	}
}
