// ABOUTME: YAML configuration parsing and validation
// ABOUTME: Shared by the client and server binaries, overridden by flags
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete voicelink configuration file
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Client   ClientConfig   `yaml:"client"`
	Playback PlaybackConfig `yaml:"playback"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures cmd/voicelink-server
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	Name          string        `yaml:"name"`
	StreamRate    int           `yaml:"stream_rate"`
	CaptureRate   int           `yaml:"capture_rate"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`
	BufferAhead   time.Duration `yaml:"buffer_ahead"`
	MDNS          bool          `yaml:"mdns"`
	Speak         string        `yaml:"speak"`
	RecordDir     string        `yaml:"record_dir"`
	TLSCert       string        `yaml:"tls_cert"`
	TLSKey        string        `yaml:"tls_key"`
}

// ClientConfig configures the client binary
type ClientConfig struct {
	Server    string `yaml:"server"`
	Secure    bool   `yaml:"secure"`
	Insecure  bool   `yaml:"insecure"`
	Output    string `yaml:"output"`
	Mic       bool   `yaml:"mic"`
	BlockSize int    `yaml:"block_size"`
}

// PlaybackConfig sizes the client's playback buffer
type PlaybackConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	Channels      int `yaml:"channels"`
	BufferSeconds int `yaml:"buffer_seconds"`
	StartMs       int `yaml:"start_ms"`
	ReadSize      int `yaml:"read_size"`
}

// LoggingConfig controls log destinations
type LoggingConfig struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// MetricsConfig controls the Prometheus endpoint; empty Addr disables it
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8001",
			Name:          "voicelink",
			StreamRate:    48000,
			CaptureRate:   16000,
			ChunkDuration: 20 * time.Millisecond,
			BufferAhead:   500 * time.Millisecond,
			MDNS:          true,
			Speak:         "tone",
		},
		Client: ClientConfig{
			Output:    "malgo",
			Mic:       true,
			BlockSize: 128,
		},
		Playback: PlaybackConfig{
			SampleRate:    48000,
			Channels:      2,
			BufferSeconds: 60,
			StartMs:       500,
			ReadSize:      16 * 1024,
		},
		Logging: LoggingConfig{
			File: "voicelink.log",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Load reads path and overlays it on Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section and joins all problems into one error
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Client.Validate(),
		c.Playback.Validate(),
	)
}

// Validate checks the server section
func (s ServerConfig) Validate() error {
	var errs []error
	if s.StreamRate <= 0 {
		errs = append(errs, fmt.Errorf("server.stream_rate must be positive, got %d", s.StreamRate))
	}
	if s.CaptureRate <= 0 {
		errs = append(errs, fmt.Errorf("server.capture_rate must be positive, got %d", s.CaptureRate))
	}
	if s.ChunkDuration <= 0 {
		errs = append(errs, fmt.Errorf("server.chunk_duration must be positive, got %v", s.ChunkDuration))
	}
	if s.BufferAhead < 0 {
		errs = append(errs, fmt.Errorf("server.buffer_ahead must not be negative, got %v", s.BufferAhead))
	}
	if (s.TLSCert == "") != (s.TLSKey == "") {
		errs = append(errs, fmt.Errorf("server.tls_cert and server.tls_key must be set together"))
	}
	return errors.Join(errs...)
}

// Validate checks the client section
func (c ClientConfig) Validate() error {
	var errs []error
	switch c.Output {
	case "", "malgo", "oto", "portaudio":
	default:
		errs = append(errs, fmt.Errorf("client.output must be malgo, oto or portaudio, got %q", c.Output))
	}
	if c.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("client.block_size must be positive, got %d", c.BlockSize))
	}
	return errors.Join(errs...)
}

// Validate checks the playback section
func (p PlaybackConfig) Validate() error {
	var errs []error
	if p.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("playback.sample_rate must be positive, got %d", p.SampleRate))
	}
	if p.Channels < 1 || p.Channels > 8 {
		errs = append(errs, fmt.Errorf("playback.channels must be 1..8, got %d", p.Channels))
	}
	if p.BufferSeconds <= 0 {
		errs = append(errs, fmt.Errorf("playback.buffer_seconds must be positive, got %d", p.BufferSeconds))
	}
	if p.StartMs < 0 {
		errs = append(errs, fmt.Errorf("playback.start_ms must not be negative, got %d", p.StartMs))
	}
	if p.StartMs > p.BufferSeconds*1000 {
		errs = append(errs, fmt.Errorf("playback.start_ms %d exceeds buffer of %d s", p.StartMs, p.BufferSeconds))
	}
	return errors.Join(errs...)
}

// Capacity returns the playback ring size in samples
func (p PlaybackConfig) Capacity() int {
	return p.BufferSeconds * p.SampleRate
}

// StartThreshold returns the start gate in samples
func (p PlaybackConfig) StartThreshold() int {
	return p.SampleRate * p.StartMs / 1000
}
