// Package services holds the HTTP plumbing shared by the external service clients.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ai-things/clipcast/internal/utils"
)

// StatusError is a non-2xx response.
type StatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s status=%d body=%s", e.Service, e.Operation, e.StatusCode, e.Body)
}

// NewHTTPClient returns a client with timeout, or a default two minute one.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}

// Do sends req and decodes a 2xx JSON body into out (when out is non-nil).
func Do(client *http.Client, service, operation string, req *http.Request, out any) error {
	utils.Debug("http request", "service", service, "op", operation, "method", req.Method, "url", req.URL.Redacted())
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Service:    service,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), 512),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", service, operation, err)
	}
	return nil
}

// NewJSONRequest builds a request with a JSON-encoded payload.
func NewJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// FilePart is one file field of a multipart upload.
type FilePart struct {
	Field string
	Path  string
}

// NewMultipartRequest streams files and plain fields as multipart/form-data.
func NewMultipartRequest(ctx context.Context, url string, fields map[string]string, files ...FilePart) (*http.Request, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, fields, files)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, files []FilePart) error {
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return err
		}
	}
	for _, f := range files {
		in, err := os.Open(f.Path)
		if err != nil {
			return err
		}
		part, err := mw.CreateFormFile(f.Field, filepath.Base(f.Path))
		if err != nil {
			in.Close()
			return err
		}
		_, err = io.Copy(part, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Download streams url into dest atomically.
func Download(ctx context.Context, client *http.Client, service, url, dest string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%s: download url missing", service)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Service: service, Operation: "download", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	utils.Debug("download", "service", service, "dest", dest)
	return utils.WriteFileAtomic(dest, resp.Body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
