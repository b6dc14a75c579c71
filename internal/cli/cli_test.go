package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai-things/clipcast/internal/config"
	"ai-things/clipcast/internal/db"
	"ai-things/clipcast/internal/pipeline"
	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/utils"
)

func init() {
	utils.SetLogOutput(io.Discard)
}

const clipsJSON = `{
  "topic": "nutrition",
  "clips_ranked": [
    {
      "rank": 1,
      "start_time": "00:00:00",
      "end_time": "00:00:30",
      "hook_text": "Counting calories is a part-time job",
      "dialogue_lines": [
        {"speaker": "Speaker A", "text": "Who has time to log every meal?"},
        {"speaker": "Speaker B", "text": "Nobody."}
      ]
    }
  ]
}`

type testEnv struct {
	dir        string
	configPath string
	sqlitePath string
}

func newTestEnv(t *testing.T, assets map[string]string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		sqlitePath: filepath.Join(dir, "work", "clipcast.db"),
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[app]\nwork_dir = %q\noutput_dir = %q\n\n", filepath.Join(dir, "work"), filepath.Join(dir, "out"))
	fmt.Fprintf(&b, "[db]\ndriver = \"sqlite\"\nsqlite_path = %q\n\n", env.sqlitePath)
	b.WriteString("[assets]\n")
	for _, speaker := range []string{"person1", "person2"} {
		fmt.Fprintf(&b, "%s = %q\n", speaker, assets[speaker])
	}
	if err := os.WriteFile(env.configPath, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"FIRECRAWL_API_KEY", "OPENAI_API_KEY", "ELEVENLABS_API_KEY", "ELEVEN_LABS_KEY", "SYNC_API_KEY", "SYNC_KEY", "ZAPCAP_API_KEY", "SLACK_BOT_TOKEN"} {
		t.Setenv(key, "")
	}
	t.Setenv("CLIPCAST_CONFIG", "")
	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(strings.NewReader(""), &out)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClipsListAndSegments(t *testing.T) {
	env := newTestEnv(t, nil)
	path := writeFile(t, filepath.Join(env.dir, "clips.json"), clipsJSON)

	out, err := env.run(t, "clips:list", path)
	if err != nil {
		t.Fatalf("clips:list: %v", err)
	}
	if !strings.Contains(out, "topic: nutrition") || !strings.Contains(out, "Counting calories") {
		t.Fatalf("clips:list output:\n%s", out)
	}

	out, err = env.run(t, "clips:segments", path, "--clip-index", "0")
	if err != nil {
		t.Fatalf("clips:segments: %v", err)
	}
	if !strings.Contains(out, "person1") || !strings.Contains(out, "person2") || !strings.Contains(out, "Nobody.") {
		t.Fatalf("clips:segments output:\n%s", out)
	}

	if _, err := env.run(t, "clips:segments", path, "--clip-index", "5"); err == nil {
		t.Fatal("expected error for out-of-range clip index")
	}
}

func TestAssetsCheckReportsMissingVideo(t *testing.T) {
	dir := t.TempDir()
	present := writeFile(t, filepath.Join(dir, "man_1.mp4"), "video")
	env := newTestEnv(t, map[string]string{
		"person1": present,
		"person2": filepath.Join(dir, "man_2.mp4"),
	})

	out, err := env.run(t, "assets:check")
	var missing *podcast.MissingAssetError
	if !errors.As(err, &missing) || missing.Speaker != podcast.Person2 {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "missing") || !strings.Contains(out, "ok") {
		t.Fatalf("assets:check output:\n%s", out)
	}

	if _, err := env.run(t, "assets:check", "person1"); err != nil {
		t.Fatalf("assets:check person1: %v", err)
	}
}

func TestTranscriptSampleRefusesOverwrite(t *testing.T) {
	env := newTestEnv(t, nil)
	path := filepath.Join(env.dir, "sample.txt")

	if _, err := env.run(t, "transcript:sample", path); err != nil {
		t.Fatalf("transcript:sample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "00:00:00 Speaker A:") {
		t.Fatalf("sample = %q", string(data)[:40])
	}
	if _, err := env.run(t, "transcript:sample", path); err == nil {
		t.Fatal("expected error when file exists")
	}
	if _, err := env.run(t, "transcript:sample", path, "--force"); err != nil {
		t.Fatalf("transcript:sample --force: %v", err)
	}
}

func TestRunsListAndShow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	store, err := db.NewSQLiteStore(env.sqlitePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreateRun(ctx, db.Run{ID: "run-1", WebsiteURL: "https://example.com", AppName: "Cal AI", State: "analyzing"}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordTransition(ctx, "run-1", "analyzing", "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, "run-1", db.RunResult{FinalVideoPath: "/out/cal_ai.mp4"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "runs:list")
	if err != nil {
		t.Fatalf("runs:list: %v", err)
	}
	if !strings.Contains(out, "run-1") || !strings.Contains(out, "/out/cal_ai.mp4") {
		t.Fatalf("runs:list output:\n%s", out)
	}

	out, err = env.run(t, "runs:show", "run-1")
	if err != nil {
		t.Fatalf("runs:show: %v", err)
	}
	if !strings.Contains(out, "state:      done") || !strings.Contains(out, "analyzing") {
		t.Fatalf("runs:show output:\n%s", out)
	}

	if _, err := env.run(t, "runs:show", "nope"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("runs:show unknown err = %v", err)
	}
}

func TestPipelineRunRequiresKeys(t *testing.T) {
	env := newTestEnv(t, nil)
	path := writeFile(t, filepath.Join(env.dir, "clips.json"), clipsJSON)

	_, err := env.run(t, "pipeline:run", "--clips", path, "--no-prompt")
	if err == nil || !strings.Contains(err.Error(), "speech.api_key") {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("clips file run should not need llm key: %v", err)
	}
}

func TestValidateRunRequest(t *testing.T) {
	dir := t.TempDir()
	transcript := writeFile(t, filepath.Join(dir, "t.txt"), "00:00:00 Speaker A: hi")

	cases := []struct {
		name    string
		req     pipeline.Request
		wantErr bool
	}{
		{"ok", pipeline.Request{WebsiteURL: "https://example.com", TranscriptPath: transcript}, false},
		{"missing url", pipeline.Request{TranscriptPath: transcript}, true},
		{"bad scheme", pipeline.Request{WebsiteURL: "example.com", TranscriptPath: transcript}, true},
		{"missing transcript", pipeline.Request{WebsiteURL: "https://example.com", TranscriptPath: filepath.Join(dir, "nope.txt")}, true},
		{"clips file", pipeline.Request{ClipsPath: transcript}, false},
		{"missing clips file", pipeline.Request{ClipsPath: filepath.Join(dir, "nope.json")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRunRequest(tc.req)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %t", err, tc.wantErr)
			}
		})
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	var out bytes.Buffer
	got := renderTable(&out, []string{"A", "B"}, [][]string{{"x"}}, nil)
	if !strings.Contains(got, "x") || strings.Count(got, "\n") < 3 {
		t.Fatalf("table:\n%s", got)
	}
	if renderTable(&out, nil, nil, nil) != "" {
		t.Fatal("expected empty table without headers")
	}
}

func TestNewProfileNeedsKeyAndUser(t *testing.T) {
	cfg := config.Default().Kontext
	if newProfile(cfg) != nil {
		t.Fatal("expected no profile without a key")
	}
	cfg.APIKey = "ktext-key"
	if newProfile(cfg) != nil {
		t.Fatal("expected no profile without a user")
	}
	cfg.UserID = "user-1"
	if newProfile(cfg) == nil {
		t.Fatal("expected a profile client")
	}
}
