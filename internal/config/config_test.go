package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emmett/streamvox/internal/decoder"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}

	dec := cfg.DecoderConfig()
	if dec.Method != decoder.ModifiedBeamSearch || dec.BeamSize != 4 {
		t.Fatalf("unexpected decoder defaults %+v", dec)
	}
	if dec.BufferCeiling != 30*16000 {
		t.Fatalf("expected 30 s buffer, got %d samples", dec.BufferCeiling)
	}
	if dec.Endpoint.Rule1.MinTrailingSilence != 2.4 || dec.Endpoint.Rule2.MinTrailingSilence != 1.2 || dec.Endpoint.Rule3.MinUtteranceLength != 300 {
		t.Fatalf("unexpected endpoint defaults %+v", dec.Endpoint)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
decoder:
  method: greedy_search
endpoint:
  rule2:
    min_trailing_silence: 0.8
    require_text: true
audio:
  poll_interval: 50ms
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Decoder.Method != "greedy_search" {
		t.Fatalf("expected greedy_search, got %s", cfg.Decoder.Method)
	}
	if cfg.Endpoint.Rule2.MinTrailingSilence != 0.8 {
		t.Fatalf("expected rule2 0.8, got %v", cfg.Endpoint.Rule2.MinTrailingSilence)
	}
	if cfg.Endpoint.Rule1.MinTrailingSilence != 2.4 {
		t.Fatalf("expected untouched rule1 default, got %v", cfg.Endpoint.Rule1.MinTrailingSilence)
	}
	if cfg.Audio.PollInterval != 50*time.Millisecond {
		t.Fatalf("expected 50ms poll interval, got %v", cfg.Audio.PollInterval)
	}
	if cfg.Feature.NumBins != 80 {
		t.Fatalf("expected default feature bins, got %d", cfg.Feature.NumBins)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"beam":     "decoder:\n  beam_size: 0\n",
		"method":   "decoder:\n  method: viterbi\n",
		"endpoint": "endpoint:\n  rule1:\n    min_trailing_silence: -1\n",
		"format":   "output:\n  format: xml\n",
		"level":    "log:\n  level: loud\n",
		"feature":  "feature:\n  num_bins: 0\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			os.WriteFile(path, []byte(data), 0644)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Model.Default = "stub-energy"
	cfg.Audio.PollInterval = 40 * time.Millisecond

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded.Model.Default != "stub-energy" || loaded.Audio.PollInterval != 40*time.Millisecond {
		t.Fatalf("round trip lost settings: %+v", loaded)
	}
}

func TestLoadWithFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	old := SystemConfigPath
	SystemConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() { SystemConfigPath = old })

	cfg, err := LoadWithFallback("")
	if err != nil {
		t.Fatalf("LoadWithFallback() returned error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected defaults without config files, got level %s", cfg.Log.Level)
	}

	os.WriteFile(filepath.Join(home, ".streamvoxrc"), []byte("log:\n  level: warn\n"), 0644)
	cfg, err = LoadWithFallback("")
	if err != nil {
		t.Fatalf("LoadWithFallback() returned error: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("expected user config, got level %s", cfg.Log.Level)
	}

	if _, err := LoadWithFallback(filepath.Join(home, "nope.yaml")); err == nil || !strings.Contains(err.Error(), "failed to read") {
		t.Fatalf("expected read error for explicit path, got %v", err)
	}
}
