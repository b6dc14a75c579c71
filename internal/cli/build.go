package cli

import (
	"context"
	"time"

	"ai-things/clipcast/internal/compositor"
	"ai-things/clipcast/internal/config"
	"ai-things/clipcast/internal/jobclient"
	"ai-things/clipcast/internal/pipeline"
	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/services/elevenlabs"
	"ai-things/clipcast/internal/services/firecrawl"
	"ai-things/clipcast/internal/services/kontext"
	"ai-things/clipcast/internal/services/llm"
	"ai-things/clipcast/internal/services/syncso"
	"ai-things/clipcast/internal/services/zapcap"
	"ai-things/clipcast/internal/slack"
	"ai-things/clipcast/internal/utils"
)

func speakerMap(in map[string]string) map[podcast.Speaker]string {
	out := make(map[podcast.Speaker]string, len(in))
	for k, v := range in {
		out[podcast.Speaker(k)] = v
	}
	return out
}

func driverFor(policy config.JobPolicy) jobclient.Driver {
	return jobclient.NewDriver(policy.PollInterval(), policy.MaxAttempts)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func newCompositor(cfg config.Config) *compositor.Compositor {
	return compositor.New(compositor.Options{
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
		FFmpeg: cfg.Render.FFmpeg,
	})
}

func newAudioStage(cfg config.Config) podcast.AudioStage {
	return podcast.AudioStage{
		Backend: elevenlabs.New(elevenlabs.Options{
			APIKey:       cfg.Speech.APIKey,
			BaseURL:      cfg.Speech.BaseURL,
			ModelID:      cfg.Speech.ModelID,
			OutputFormat: cfg.Speech.OutputFormat,
			Timeout:      cfg.Speech.Policy().HTTPTimeout(),
		}),
		Driver:  driverFor(cfg.Speech.Policy()),
		Voices:  speakerMap(cfg.Voices),
		Workers: cfg.Pipeline.Workers,
	}
}

func newVideoStage(cfg config.Config) podcast.VideoStage {
	return podcast.VideoStage{
		Backend: syncso.New(syncso.Options{
			APIKey:  cfg.LipSync.APIKey,
			BaseURL: cfg.LipSync.BaseURL,
			Model:   cfg.LipSync.Model,
			Timeout: cfg.LipSync.Policy().HTTPTimeout(),
		}),
		Driver:  driverFor(cfg.LipSync.Policy()),
		Assets:  speakerMap(cfg.Assets),
		Workers: cfg.Pipeline.Workers,
	}
}

func newCaptionStage(cfg config.Config) podcast.CaptionStage {
	return podcast.CaptionStage{
		Backend: zapcap.New(zapcap.Options{
			APIKey:     cfg.Captions.APIKey,
			BaseURL:    cfg.Captions.BaseURL,
			TemplateID: cfg.Captions.TemplateID,
			Language:   cfg.Captions.Language,
			Timeout:    cfg.Captions.Policy().HTTPTimeout(),
		}),
		Driver:  driverFor(cfg.Captions.Policy()),
		Enabled: cfg.Captions.Enabled && cfg.Captions.APIKey != "",
	}
}

// requiredKeys lists the secrets a run needs. Analysis keys are skipped when
// clips come from a file; captions are optional.
func requiredKeys(fromClipsFile bool) []string {
	keys := []string{"speech", "lipsync"}
	if !fromClipsFile {
		keys = append(keys, "crawler", "llm")
	}
	return keys
}

// newOrchestrator wires every stage from cfg. The ledger observer records the
// run; a Slack notifier is added when configured.
func (c *commandContext) newOrchestrator(ctx context.Context, cfg config.Config) (*pipeline.Orchestrator, error) {
	ledger, err := c.openLedger(ctx)
	if err != nil {
		return nil, err
	}
	observers := pipeline.Observers{
		pipeline.LogObserver{},
		pipeline.LedgerObserver{Ledger: ledger},
	}
	if notifier := slack.NewNotifier(cfg.Slack.BotToken, cfg.Slack.Channel); notifier != nil {
		observers = append(observers, pipeline.NotifyObserver{Notifier: notifier})
	}

	orch := &pipeline.Orchestrator{
		Crawler:      firecrawl.New(cfg.Crawler.APIKey, cfg.Crawler.BaseURL, seconds(cfg.Crawler.TimeoutSeconds)),
		Audio:        newAudioStage(cfg),
		Video:        newVideoStage(cfg),
		Composer:     newCompositor(cfg),
		Caption:      newCaptionStage(cfg),
		WorkDir:      cfg.App.WorkDir,
		OutputDir:    cfg.App.OutputDir,
		ClipMax:      cfg.Pipeline.ClipMax,
		EnhanceClips: cfg.Pipeline.EnhanceClips,
		Subtitles:    cfg.Pipeline.Subtitles,
		Observer:     observers,
	}
	// Without a key the orchestrator can still run from a clips file.
	if cfg.LLM.APIKey != "" {
		llmClient, err := llm.New(llm.Options{
			APIKey:        cfg.LLM.APIKey,
			BaseURL:       cfg.LLM.BaseURL,
			AnalysisModel: cfg.LLM.AnalysisModel,
			ClipModel:     cfg.LLM.ClipModel,
			Timeout:       seconds(cfg.LLM.TimeoutSeconds),
			MaxRetries:    2,
		})
		if err != nil {
			return nil, err
		}
		orch.Clips = llmClient
	}
	if profile := newProfile(cfg.Kontext); profile != nil {
		orch.Profile = profile
	}
	return orch, nil
}

// newProfile returns nil unless both the key and the user are configured.
func newProfile(cfg config.KontextConfig) *kontext.Client {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.UserID == "" {
		utils.Warn("kontext api key set without kontext.user_id, analysis stays unpersonalized")
		return nil
	}
	return kontext.New(kontext.Options{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		UserID:    cfg.UserID,
		Task:      cfg.Task,
		MaxTokens: cfg.MaxTokens,
		Timeout:   seconds(cfg.TimeoutSeconds),
	})
}
