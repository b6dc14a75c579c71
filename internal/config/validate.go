package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks ranges and enumerations. Missing API keys are not errors
// here; each command checks the keys it actually needs.
func (c Config) Validate() error {
	var problems []string
	if c.App.WorkDir == "" {
		problems = append(problems, "app.work_dir must be set")
	}
	if c.App.OutputDir == "" {
		problems = append(problems, "app.output_dir must be set")
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		problems = append(problems, fmt.Sprintf("render resolution must be positive, got %dx%d", c.Render.Width, c.Render.Height))
	}
	if c.Pipeline.ClipMax <= 0 {
		problems = append(problems, "pipeline.clip_max must be positive")
	}
	if c.Pipeline.ClipIndex < 0 {
		problems = append(problems, "pipeline.clip_index must not be negative")
	}
	if c.Pipeline.Workers <= 0 {
		problems = append(problems, "pipeline.workers must be positive")
	}
	policies := []struct {
		name   string
		policy JobPolicy
	}{
		{"speech", c.Speech.Policy()},
		{"lipsync", c.LipSync.Policy()},
		{"captions", c.Captions.Policy()},
	}
	for _, p := range policies {
		if p.policy.PollIntervalSeconds <= 0 {
			problems = append(problems, p.name+".poll_interval_seconds must be positive")
		}
		if p.policy.MaxAttempts <= 0 {
			problems = append(problems, p.name+".max_attempts must be positive")
		}
	}
	if c.Kontext.MaxTokens < 0 {
		problems = append(problems, "kontext.max_tokens must not be negative")
	}
	switch c.DB.Driver {
	case "sqlite", "postgres", "none":
	default:
		problems = append(problems, fmt.Sprintf("db.driver %q is not one of sqlite, postgres, none", c.DB.Driver))
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// RequireKeys reports which of the named secrets are empty.
func (c Config) RequireKeys(names ...string) error {
	keys := map[string]string{
		"crawler":  c.Crawler.APIKey,
		"llm":      c.LLM.APIKey,
		"speech":   c.Speech.APIKey,
		"lipsync":  c.LipSync.APIKey,
		"captions": c.Captions.APIKey,
	}
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(keys[name]) == "" {
			missing = append(missing, name+".api_key")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}
