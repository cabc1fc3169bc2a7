package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config file not created: %v", err)
	}

	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if cfg.Audio.Channels != DefaultChannels {
		t.Errorf("channels = %d, want %d", cfg.Audio.Channels, DefaultChannels)
	}
	if cfg.Detection.Metric != DefaultMetric {
		t.Errorf("metric = %q, want %q", cfg.Detection.Metric, DefaultMetric)
	}
	if cfg.Detection.DefaultThreshold != DefaultThreshold {
		t.Errorf("default threshold = %f, want %f", cfg.Detection.DefaultThreshold, DefaultThreshold)
	}
}

func TestLoadExistingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	content := `{
		"system": {"data_dir": "/var/lib/soundtrap", "port": 9000},
		"audio": {"sample_rate": 16000, "channels": 1, "block_frames": 800},
		"detection": {"metric": "peak", "default_threshold": 0.2}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.System.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.System.Port)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Detection.Metric != "peak" {
		t.Errorf("metric = %q, want peak", cfg.Detection.Metric)
	}
	// Unspecified fields fall back to defaults.
	if cfg.Detection.SilenceHoldSec != DefaultSilenceHoldSec {
		t.Errorf("silence hold = %f, want %f", cfg.Detection.SilenceHoldSec, DefaultSilenceHoldSec)
	}
	if cfg.Web.StationName != DefaultStationName {
		t.Errorf("station name = %q, want %q", cfg.Web.StationName, DefaultStationName)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "bad metric",
			content: `{"detection": {"metric": "loudness"}}`,
		},
		{
			name:    "bad uncalibrated policy",
			content: `{"detection": {"uncalibrated_policy": "panic"}}`,
		},
		{
			name:    "threshold above one",
			content: `{"detection": {"default_threshold": 1.5}}`,
		},
		{
			name:    "too many channels",
			content: `{"audio": {"channels": 6}}`,
		},
		{
			name:    "bad derivation",
			content: `{"calibration": {"derivation": "guess"}}`,
		},
		{
			name:    "malformed json",
			content: `{"system":`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}

			cfg := New(path)
			if err := cfg.Load(); err == nil {
				t.Error("Load accepted invalid config")
			}
		})
	}
}

func TestBlocksConversion(t *testing.T) {
	cfg := New(filepath.Join(t.TempDir(), "config.json"))

	// 8000 Hz / 500 frames = 16 blocks per second.
	if got := cfg.BlocksPerSecond(); got != 16 {
		t.Errorf("BlocksPerSecond = %f, want 16", got)
	}

	tests := []struct {
		seconds float64
		want    int
	}{
		{0, 0},
		{-1, 0},
		{0.01, 1}, // rounds up to one block
		{0.5, 8},
		{1, 16},
		{5, 80},
	}
	for _, tt := range tests {
		if got := cfg.Blocks(tt.seconds); got != tt.want {
			t.Errorf("Blocks(%f) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}
