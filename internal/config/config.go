package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	defaultConfigPath = "/etc/clipcast/config.toml"
	configPathEnv     = "CLIPCAST_CONFIG"
)

type Config struct {
	App      AppConfig         `toml:"app"`
	Render   RenderConfig      `toml:"render"`
	Pipeline PipelineConfig    `toml:"pipeline"`
	Crawler  CrawlerConfig     `toml:"crawler"`
	LLM      LLMConfig         `toml:"llm"`
	Speech   SpeechConfig      `toml:"speech"`
	LipSync  LipSyncConfig     `toml:"lipsync"`
	Captions CaptionsConfig    `toml:"captions"`
	Kontext  KontextConfig     `toml:"kontext"`
	Voices   map[string]string `toml:"voices"`
	Assets   map[string]string `toml:"assets"`
	DB       DBConfig          `toml:"db"`
	RabbitMQ RabbitMQConfig    `toml:"rabbitmq"`
	Slack    SlackConfig       `toml:"slack"`
}

type AppConfig struct {
	Hostname  string `toml:"hostname"`
	Env       string `toml:"env"`
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
}

type RenderConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	FFmpeg string `toml:"ffmpeg"`
}

type PipelineConfig struct {
	ClipIndex    int  `toml:"clip_index"`
	ClipMax      int  `toml:"clip_max"`
	Workers      int  `toml:"workers"`
	EnhanceClips bool `toml:"enhance_clips"`
	Subtitles    bool `toml:"subtitles"`
}

type CrawlerConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type LLMConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	AnalysisModel  string `toml:"analysis_model"`
	ClipModel      string `toml:"clip_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// JobPolicy is the submit/poll budget of a remote job backend.
type JobPolicy struct {
	PollIntervalSeconds float64
	MaxAttempts         int
	TimeoutSeconds      int
}

func (p JobPolicy) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSeconds * float64(time.Second))
}

func (p JobPolicy) HTTPTimeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type SpeechConfig struct {
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"`
	MaxAttempts         int     `toml:"max_attempts"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	ModelID             string  `toml:"model_id"`
	OutputFormat        string  `toml:"output_format"`
}

type LipSyncConfig struct {
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"`
	MaxAttempts         int     `toml:"max_attempts"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	Model               string  `toml:"model"`
}

type CaptionsConfig struct {
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"`
	MaxAttempts         int     `toml:"max_attempts"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	Enabled             bool    `toml:"enabled"`
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	TemplateID          string  `toml:"template_id"`
	Language            string  `toml:"language"`
}

func (c SpeechConfig) Policy() JobPolicy {
	return JobPolicy{PollIntervalSeconds: c.PollIntervalSeconds, MaxAttempts: c.MaxAttempts, TimeoutSeconds: c.TimeoutSeconds}
}

func (c LipSyncConfig) Policy() JobPolicy {
	return JobPolicy{PollIntervalSeconds: c.PollIntervalSeconds, MaxAttempts: c.MaxAttempts, TimeoutSeconds: c.TimeoutSeconds}
}

func (c CaptionsConfig) Policy() JobPolicy {
	return JobPolicy{PollIntervalSeconds: c.PollIntervalSeconds, MaxAttempts: c.MaxAttempts, TimeoutSeconds: c.TimeoutSeconds}
}

// KontextConfig enables personalized analysis context. An empty APIKey
// disables it.
type KontextConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	UserID         string `toml:"user_id"`
	Task           string `toml:"task"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type DBConfig struct {
	// Driver is "sqlite" (default), "postgres" or "none".
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
	URL        string `toml:"url"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Name       string `toml:"name"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	SSLMode    string `toml:"sslmode"`
}

type RabbitMQConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	VHost        string `toml:"vhost"`
	RequestQueue string `toml:"request_queue"`
	ReadyQueue   string `toml:"ready_queue"`
	FailedQueue  string `toml:"failed_queue"`
}

type SlackConfig struct {
	BotToken string `toml:"bot_token"`
	Channel  string `toml:"channel"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		App: AppConfig{
			Env:       "production",
			WorkDir:   "temp",
			OutputDir: "output",
		},
		Render: RenderConfig{Width: 720, Height: 1280, FFmpeg: "ffmpeg"},
		Pipeline: PipelineConfig{
			ClipIndex:    0,
			ClipMax:      4,
			Workers:      1,
			EnhanceClips: true,
			Subtitles:    true,
		},
		Crawler: CrawlerConfig{BaseURL: "https://api.firecrawl.dev/v1", TimeoutSeconds: 120},
		LLM: LLMConfig{
			AnalysisModel:  "gpt-5",
			ClipModel:      "gpt-4.1",
			TimeoutSeconds: 300,
		},
		Speech: SpeechConfig{
			PollIntervalSeconds: 1,
			MaxAttempts:         3,
			TimeoutSeconds:      180,
			BaseURL:             "https://api.elevenlabs.io",
			ModelID:             "eleven_v3",
			OutputFormat:        "mp3_44100_128",
		},
		LipSync: LipSyncConfig{
			PollIntervalSeconds: 10,
			MaxAttempts:         90,
			TimeoutSeconds:      300,
			BaseURL:             "https://api.sync.so",
			Model:               "lipsync-2",
		},
		Captions: CaptionsConfig{
			PollIntervalSeconds: 2,
			MaxAttempts:         300,
			TimeoutSeconds:      300,
			Enabled:             true,
			BaseURL:             "https://api.zapcap.ai",
			TemplateID:          "ca050348-e2d0-49a7-9c75-7a5e8335c67d",
			Language:            "en",
		},
		Kontext: KontextConfig{
			Task:           "general",
			MaxTokens:      300,
			TimeoutSeconds: 30,
		},
		Voices: map[string]string{
			"person1": "6OzrBCQf8cjERkYgzSg8",
			"person2": "VCgLBmBjldJmfphyB8sZ",
		},
		Assets: map[string]string{
			"person1": "assets/man_1.mp4",
			"person2": "assets/man_2.mp4",
		},
		DB: DBConfig{
			Driver:  "sqlite",
			Host:    "127.0.0.1",
			Port:    5432,
			Name:    "clipcast",
			User:    "clipcast",
			SSLMode: "prefer",
		},
		RabbitMQ: RabbitMQConfig{
			Host:         "127.0.0.1",
			Port:         5672,
			User:         "guest",
			Password:     "guest",
			VHost:        "/",
			RequestQueue: "podcast_requested",
			ReadyQueue:   "podcast_ready",
			FailedQueue:  "podcast_failed",
		},
	}
}

// Load reads .env (if any) and the TOML file named by CLIPCAST_CONFIG, falling
// back to /etc/clipcast/config.toml. A missing file yields the defaults.
func Load() (Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config path taking precedence.
func LoadFrom(path string) (Config, error) {
	_ = godotenv.Load()

	configPath := firstNonEmpty(path, os.Getenv(configPathEnv), defaultConfigPath)
	return LoadFile(configPath)
}

func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			dec := toml.NewDecoder(file)
			if err := dec.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv fills secrets from the environment when the file leaves them empty.
func (c *Config) applyEnv() {
	c.Crawler.APIKey = firstNonEmpty(c.Crawler.APIKey, os.Getenv("FIRECRAWL_API_KEY"))
	c.LLM.APIKey = firstNonEmpty(c.LLM.APIKey, os.Getenv("OPENAI_API_KEY"))
	c.LLM.BaseURL = firstNonEmpty(c.LLM.BaseURL, os.Getenv("OPENAI_BASE_URL"))
	c.Speech.APIKey = firstNonEmpty(c.Speech.APIKey, os.Getenv("ELEVENLABS_API_KEY"), os.Getenv("ELEVEN_LABS_KEY"))
	c.LipSync.APIKey = firstNonEmpty(c.LipSync.APIKey, os.Getenv("SYNC_API_KEY"), os.Getenv("SYNC_KEY"))
	c.Captions.APIKey = firstNonEmpty(c.Captions.APIKey, os.Getenv("ZAPCAP_API_KEY"))
	c.Kontext.APIKey = firstNonEmpty(c.Kontext.APIKey, os.Getenv("KONTEXT_API_KEY"))
	c.Kontext.BaseURL = firstNonEmpty(c.Kontext.BaseURL, os.Getenv("KONTEXT_API_URL"), "https://api.kontext.dev")
	c.Kontext.UserID = firstNonEmpty(c.Kontext.UserID, os.Getenv("KONTEXT_USER_ID"))
	c.Slack.BotToken = firstNonEmpty(c.Slack.BotToken, os.Getenv("SLACK_BOT_TOKEN"))
	c.Slack.Channel = firstNonEmpty(c.Slack.Channel, os.Getenv("SLACK_CHANNEL"))
	c.DB.URL = firstNonEmpty(c.DB.URL, os.Getenv("DATABASE_URL"))
}

func (c *Config) normalize() {
	if c.App.Hostname == "" {
		if host, err := os.Hostname(); err == nil {
			c.App.Hostname = host
		}
	}
	c.App.WorkDir = expandHome(strings.TrimSpace(c.App.WorkDir))
	c.App.OutputDir = expandHome(strings.TrimSpace(c.App.OutputDir))
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	if c.DB.SQLitePath == "" {
		c.DB.SQLitePath = filepath.Join(c.App.WorkDir, "clipcast.db")
	}
	c.DB.SQLitePath = expandHome(c.DB.SQLitePath)
	for speaker, path := range c.Assets {
		c.Assets[speaker] = expandHome(path)
	}
	c.Crawler.BaseURL = strings.TrimRight(c.Crawler.BaseURL, "/")
	c.Speech.BaseURL = strings.TrimRight(c.Speech.BaseURL, "/")
	c.LipSync.BaseURL = strings.TrimRight(c.LipSync.BaseURL, "/")
	c.Captions.BaseURL = strings.TrimRight(c.Captions.BaseURL, "/")
	c.Kontext.BaseURL = strings.TrimRight(c.Kontext.BaseURL, "/")
}

func (c Config) DBConnString() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
		c.DB.User,
		c.DB.Password,
		c.DB.SSLMode,
	)
}

func (c Config) RabbitMQURL() string {
	vhost := strings.TrimPrefix(c.RabbitMQ.VHost, "/")
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d/%s",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
		vhost,
	)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
