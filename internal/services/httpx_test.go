package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai-things/clipcast/internal/utils"
)

func init() {
	utils.SetLogOutput(io.Discard)
}

func TestDoDecodesAndReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	}))
	defer srv.Close()

	req, _ := NewJSONRequest(context.Background(), http.MethodPost, srv.URL+"/ok", map[string]string{"a": "b"})
	var out struct {
		ID string `json:"id"`
	}
	if err := Do(srv.Client(), "test", "ok", req, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out.ID != "abc" {
		t.Fatalf("unexpected id %q", out.ID)
	}

	req, _ = NewJSONRequest(context.Background(), http.MethodGet, srv.URL+"/bad", nil)
	err := Do(srv.Client(), "test", "bad", req, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
	if !strings.Contains(statusErr.Body, "quota exceeded") {
		t.Fatalf("body not kept: %q", statusErr.Body)
	}
}

func TestMultipartUploadAndDownload(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(src, []byte("video-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			file, header, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			if header.Filename != "clip.mp4" || string(data) != "video-bytes" || r.FormValue("model") != "m1" {
				http.Error(w, "unexpected upload", http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, `{}`)
		case "/file":
			_, _ = io.WriteString(w, "result-bytes")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	req, err := NewMultipartRequest(context.Background(), srv.URL+"/upload", map[string]string{"model": "m1"}, FilePart{Field: "file", Path: src})
	if err != nil {
		t.Fatalf("NewMultipartRequest: %v", err)
	}
	if err := Do(srv.Client(), "test", "upload", req, nil); err != nil {
		t.Fatalf("upload: %v", err)
	}

	dest := filepath.Join(dir, "out", "result.mp4")
	if err := Download(context.Background(), srv.Client(), "test", srv.URL+"/file", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "result-bytes" {
		t.Fatalf("unexpected download %q", data)
	}

	if err := Download(context.Background(), srv.Client(), "test", srv.URL+"/missing", filepath.Join(dir, "missing.mp4")); err == nil {
		t.Fatal("expected error for 404")
	}
	if utils.FileExists(filepath.Join(dir, "missing.mp4")) {
		t.Fatal("failed download must not create the file")
	}
}
