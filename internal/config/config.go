package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the binary looks for its configuration file.
const DefaultPath = "config/config.yaml"

// Config represents the application configuration
type Config struct {
	Log      Log      `yaml:"log"`
	Agent    Agent    `yaml:"agent"`
	Browser  Browser  `yaml:"browser"`
	Server   Server   `yaml:"server"`
	Storage  Storage  `yaml:"storage"`
	Detector Detector `yaml:"detector"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Agent configures the segment-resolution pipeline and the playback monitor.
type Agent struct {
	BackendURL            string `yaml:"backend_url" validate:"required,url"`
	MetadataPrefix        string `yaml:"metadata_prefix" validate:"required"`
	PollIntervalMS        int    `yaml:"poll_interval_ms" validate:"gt=0"`
	History               int    `yaml:"history" validate:"gt=0"`
	MaxTranscriptBytes    int64  `yaml:"max_transcript_bytes" validate:"gt=0"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" validate:"gte=0"`
	NotifyPrefix          string `yaml:"notify_prefix"`
}

// PollInterval returns the monitor tick period.
func (a Agent) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMS) * time.Millisecond
}

// RequestTimeout returns the outbound request timeout; zero means none.
func (a Agent) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Browser configures the Chrome instance hosting the player page.
type Browser struct {
	Headless      bool     `yaml:"headless"`
	ExecPath      string   `yaml:"exec_path"`
	UserDataDir   string   `yaml:"user_data_dir"`
	VideoSelector string   `yaml:"video_selector" validate:"required"`
	ResourceTypes []string `yaml:"resource_types" validate:"min=1"`
}

// Server configures the ads backend.
type Server struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port" validate:"gt=0,lte=65535"`
	BodyLimitMB int    `yaml:"body_limit_mb" validate:"gt=0"`
}

// Storage configures the backend's segment database.
type Storage struct {
	Database               string `yaml:"database" validate:"required"`
	RetentionDays          int    `yaml:"retention_days" validate:"gte=0"`
	CleanupIntervalMinutes int    `yaml:"cleanup_interval_minutes" validate:"gt=0"`
}

// Detector configures the external ad-detection service used by the backend.
type Detector struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	Model          string `yaml:"model" validate:"required"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

// APIKey reads the detector API key from the configured environment variable.
func (d Detector) APIKey() string {
	if d.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(d.APIKeyEnv)
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}

	c.Log.Level = "info"
	c.Log.Format = "text"

	c.Agent.BackendURL = "https://harrynull.tech/bilisponsor/"
	c.Agent.MetadataPrefix = "//api.bilibili.com/x/player/wbi/v2"
	c.Agent.PollIntervalMS = 500
	c.Agent.History = 32
	c.Agent.MaxTranscriptBytes = 10_000_000
	c.Agent.RequestTimeoutSeconds = 0
	c.Agent.NotifyPrefix = "跳过广告："

	c.Browser.Headless = false
	c.Browser.VideoSelector = ".bpx-player-video-wrap video"
	c.Browser.ResourceTypes = []string{"XHR", "Fetch"}

	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8000
	c.Server.BodyLimitMB = 16

	c.Storage.Database = "ads.db"
	c.Storage.CleanupIntervalMinutes = 60

	c.Detector.BaseURL = "https://api.deepseek.com"
	c.Detector.Model = "deepseek-chat"
	c.Detector.APIKeyEnv = "DEEPSEEK_API_KEY"
	c.Detector.TimeoutSeconds = 120

	return c
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
