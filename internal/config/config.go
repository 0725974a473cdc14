package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/emmett/streamvox/internal/decoder"
	"github.com/emmett/streamvox/internal/feature"
)

// Config represents the application configuration
type Config struct {
	// Model settings
	Model struct {
		Default string `yaml:"default"`
		Dir     string `yaml:"dir"`
	} `yaml:"model"`

	// Feature front end
	Feature feature.Options `yaml:"feature"`

	// Decoder settings
	Decoder struct {
		Method         string  `yaml:"method"`
		BeamSize       int     `yaml:"beam_size"`
		EnableEndpoint bool    `yaml:"enable_endpoint"`
		FrameDuration  float64 `yaml:"frame_duration"`
		BufferSeconds  float64 `yaml:"buffer_seconds"`
	} `yaml:"decoder"`

	// Endpoint rules
	Endpoint decoder.EndpointConfig `yaml:"endpoint"`

	// Audio settings
	Audio struct {
		Device       string        `yaml:"device"`
		SampleRate   int           `yaml:"sample_rate"`
		PollInterval time.Duration `yaml:"poll_interval"`
		PTTHotkey    string        `yaml:"ptt_hotkey"`
	} `yaml:"audio"`

	// Output settings
	Output struct {
		Format    string `yaml:"format"`
		File      string `yaml:"file"`
		Lowercase bool   `yaml:"lowercase"`
		Partials  bool   `yaml:"partials"`
	} `yaml:"output"`

	// Server settings
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Log settings
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Model.Default = ""
	cfg.Model.Dir = ""

	cfg.Feature = feature.DefaultOptions()

	dec := decoder.DefaultConfig()
	cfg.Decoder.Method = string(dec.Method)
	cfg.Decoder.BeamSize = dec.BeamSize
	cfg.Decoder.EnableEndpoint = dec.EnableEndpoint
	cfg.Decoder.FrameDuration = 0
	cfg.Decoder.BufferSeconds = 30

	cfg.Endpoint = decoder.DefaultEndpointConfig()

	cfg.Audio.Device = ""
	cfg.Audio.SampleRate = 16000
	cfg.Audio.PollInterval = 20 * time.Millisecond
	cfg.Audio.PTTHotkey = ""

	cfg.Output.Format = "text"
	cfg.Output.File = ""
	cfg.Output.Lowercase = true
	cfg.Output.Partials = true

	cfg.Server.Host = "localhost"
	cfg.Server.Port = 50051
	cfg.Server.ShutdownTimeout = 5 * time.Second

	cfg.Log.Level = "info"

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// UserConfigPath returns ~/.streamvoxrc
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".streamvoxrc"), nil
}

// SystemConfigPath is consulted when no user config exists
var SystemConfigPath = "/etc/streamvox/config.yaml"

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.streamvoxrc > /etc/streamvox/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	if userPath, err := UserConfigPath(); err == nil {
		if _, err := os.Stat(userPath); err == nil {
			return Load(userPath)
		}
	}

	if _, err := os.Stat(SystemConfigPath); err == nil {
		return Load(SystemConfigPath)
	}

	return DefaultConfig(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks every section that has constraints
func (c *Config) Validate() error {
	if err := c.Feature.Validate(); err != nil {
		return fmt.Errorf("feature: %w", err)
	}
	if err := c.DecoderConfig().Validate(); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if c.Decoder.BufferSeconds < 0 {
		return fmt.Errorf("decoder: buffer_seconds must not be negative")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio: sample_rate must be positive")
	}
	if c.Audio.PollInterval <= 0 {
		return fmt.Errorf("audio: poll_interval must be positive")
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("output: unknown format %q", c.Output.Format)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// DecoderConfig converts the decoder and endpoint sections
func (c *Config) DecoderConfig() decoder.Config {
	return decoder.Config{
		Method:         decoder.Method(c.Decoder.Method),
		BeamSize:       c.Decoder.BeamSize,
		EnableEndpoint: c.Decoder.EnableEndpoint,
		Endpoint:       c.Endpoint,
		SampleRate:     c.Feature.SampleRate,
		FrameShift:     c.Feature.FrameShiftSeconds(),
		FrameDuration:  c.Decoder.FrameDuration,
		BufferCeiling:  int(c.Decoder.BufferSeconds * c.Feature.SampleRate),
	}
}

// FeatureOptions returns the feature section
func (c *Config) FeatureOptions() feature.Options {
	return c.Feature
}

// LogLevel parses the log level
func (c *Config) LogLevel() (log.Level, error) {
	return log.ParseLevel(c.Log.Level)
}

// NewLogger builds the root logger on stderr at the configured level
func (c *Config) NewLogger() *log.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}
