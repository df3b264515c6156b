// Package config resolves the immutable endpoint configuration the engine
// is constructed with. Values come from an optional YAML file first, then
// the process environment fills whatever the file left unset. The resolved
// Config is passed by value; nothing in the engine mutates process-wide
// configuration state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file nor environment supplies a value.
const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultDeadline       = 5 * time.Minute
)

// Config carries account identity, credentials, endpoint URLs, and timing
// defaults for one engine instance.
type Config struct {
	AccountID string `yaml:"accountId"`
	IngestKey string `yaml:"ingestKey"`
	QueryKey  string `yaml:"queryKey"`
	GraphKey  string `yaml:"graphKey"`

	IngestURL string `yaml:"ingestUrl"`
	QueryURL  string `yaml:"queryUrl"`
	GraphURL  string `yaml:"graphUrl"`

	RequestTimeout time.Duration `yaml:"requestTimeout"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	Deadline       time.Duration `yaml:"deadline"`
}

// Resolve loads configuration from an optional YAML file (empty path skips
// the file layer) and fills unset fields from ENTPROBE_* environment
// variables, then applies timing defaults.
func Resolve(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	fillFromEnv(&cfg)
	cfg.applyDefaults()
	return cfg, nil
}

func fillFromEnv(cfg *Config) {
	bindings := []struct {
		env  string
		dest *string
	}{
		{"ENTPROBE_ACCOUNT_ID", &cfg.AccountID},
		{"ENTPROBE_INGEST_KEY", &cfg.IngestKey},
		{"ENTPROBE_QUERY_KEY", &cfg.QueryKey},
		{"ENTPROBE_GRAPH_KEY", &cfg.GraphKey},
		{"ENTPROBE_INGEST_URL", &cfg.IngestURL},
		{"ENTPROBE_QUERY_URL", &cfg.QueryURL},
		{"ENTPROBE_GRAPH_URL", &cfg.GraphURL},
	}
	for _, b := range bindings {
		if *b.dest == "" {
			*b.dest = os.Getenv(b.env)
		}
	}

	durations := []struct {
		env  string
		dest *time.Duration
	}{
		{"ENTPROBE_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"ENTPROBE_POLL_INTERVAL", &cfg.PollInterval},
		{"ENTPROBE_DEADLINE", &cfg.Deadline},
	}
	for _, d := range durations {
		if *d.dest == 0 {
			if raw := os.Getenv(d.env); raw != "" {
				if parsed, err := time.ParseDuration(raw); err == nil {
					*d.dest = parsed
				}
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Deadline == 0 {
		c.Deadline = DefaultDeadline
	}
}

// Validate checks that every field required before engine construction is
// present. It runs once, before any network call.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"account id", c.AccountID},
		{"ingest key", c.IngestKey},
		{"query key", c.QueryKey},
		{"graph key", c.GraphKey},
		{"ingest URL", c.IngestURL},
		{"query URL", c.QueryURL},
		{"graph URL", c.GraphURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("config: %s is not set", r.name)
		}
	}
	return nil
}
