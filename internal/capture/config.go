package capture

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the capture client configuration, read from a yaml file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Recorder RecorderConfig `yaml:"recorder"`
	Poll     PollConfig     `yaml:"poll"`
}

// ServerConfig points the client at the backend.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	OwnerID string `yaml:"owner_id"`
	Timeout int    `yaml:"timeout"` // seconds
}

// RecorderConfig controls local microphone capture.
type RecorderConfig struct {
	Device     string `yaml:"device"`      // empty means system default input
	SampleRate int    `yaml:"sample_rate"` // Hz
	Channels   int    `yaml:"channels"`
	WorkDir    string `yaml:"work_dir"`
}

// PollConfig controls the transcript poll loop.
type PollConfig struct {
	Interval int `yaml:"interval"` // seconds
	Attempts int `yaml:"attempts"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 120,
		},
		Recorder: RecorderConfig{
			SampleRate: 16000,
			Channels:   1,
			WorkDir:    os.TempDir(),
		},
		Poll: PollConfig{
			Interval: 1,
			Attempts: 60,
		},
	}
}

// Load reads and parses the configuration file, filling gaps with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url cannot be empty")
	}
	if c.Server.Timeout < 1 {
		return fmt.Errorf("server.timeout must be at least 1 second, got %d", c.Server.Timeout)
	}
	if c.Recorder.SampleRate < 8000 {
		return fmt.Errorf("recorder.sample_rate must be at least 8000, got %d", c.Recorder.SampleRate)
	}
	if c.Recorder.Channels < 1 {
		return fmt.Errorf("recorder.channels must be at least 1, got %d", c.Recorder.Channels)
	}
	if c.Poll.Interval < 1 {
		return fmt.Errorf("poll.interval must be at least 1 second, got %d", c.Poll.Interval)
	}
	if c.Poll.Attempts < 1 {
		return fmt.Errorf("poll.attempts must be at least 1, got %d", c.Poll.Attempts)
	}
	return nil
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}
