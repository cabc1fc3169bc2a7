// Package config provides application configuration management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/opencapture/soundtrap/internal/notify"
	"github.com/opencapture/soundtrap/internal/recording"
	"github.com/opencapture/soundtrap/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort     = 8080
	DefaultStationName = "soundtrap"
	DefaultDataDir     = "data"

	DefaultSampleRate  = 8000
	DefaultChannels    = 2
	DefaultBlockFrames = 500 // 16 blocks per second at 8 kHz

	DefaultMetric             = "rms"
	DefaultThreshold          = 0.1
	DefaultUncalibrated       = "default"
	DefaultTriggerHoldSec     = 0.25
	DefaultSilenceHoldSec     = 5.0
	DefaultMinDurationSec     = 1.0
	DefaultPrerollSec         = 0.5
	DefaultMaxTrailingSec     = 2.0
	DefaultMaxSessionMinutes  = 60
	DefaultMinKeepSec         = 2.0
	DefaultBaselineSec        = 2.0
	DefaultTriggerPhaseSec    = 0.5
	DefaultArmTimeoutSec      = 30.0
	DefaultCalibrationRatio   = 3.0
	DefaultCalibrationScale   = 5.0
	DefaultUploadRetainHours  = 1
	DefaultRecordingMaxAgeDay = 0 // pruning disabled
)

// validate is the shared validator instance for configuration validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// SystemConfig holds process-level settings.
type SystemConfig struct {
	DataDir  string `json:"data_dir" validate:"required"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	EventLog string `json:"event_log"` // JSON lines event file; empty disables
}

// WebConfig holds station branding settings for the web interface.
type WebConfig struct {
	StationName string `json:"station_name" validate:"required,max=30"`
}

// AudioConfig holds audio input device settings.
type AudioConfig struct {
	Device      string `json:"device"` // device name substring; empty = default
	SampleRate  int    `json:"sample_rate" validate:"gt=0"`
	Channels    int    `json:"channels" validate:"gte=1,lte=2"`
	BlockFrames int    `json:"block_frames" validate:"gt=0"`
}

// DetectionConfig holds activity detection thresholds and timing parameters.
type DetectionConfig struct {
	Metric             string  `json:"metric" validate:"oneof=rms peak"`
	DefaultThreshold   float64 `json:"default_threshold" validate:"gt=0,lte=1"`
	UncalibratedPolicy string  `json:"uncalibrated_policy" validate:"oneof=default refuse"`
	TriggerHoldSec     float64 `json:"trigger_hold_seconds" validate:"gt=0"`
	SilenceHoldSec     float64 `json:"silence_hold_seconds" validate:"gt=0"`
	MinDurationSec     float64 `json:"min_duration_seconds" validate:"gte=0"`
	PrerollSec         float64 `json:"preroll_seconds" validate:"gte=0"`
	MaxTrailingSec     float64 `json:"max_trailing_silence_seconds" validate:"gte=0"`
	MaxSessionMinutes  int     `json:"max_session_minutes" validate:"gte=0"`
}

// CalibrationConfig holds the interactive calibration parameters.
type CalibrationConfig struct {
	Derivation      string  `json:"derivation" validate:"oneof=midpoint scaled"`
	ScaleFactor     float64 `json:"scale_factor" validate:"gt=1"`
	MinRatio        float64 `json:"min_ratio" validate:"gt=1"`
	BaselineSec     float64 `json:"baseline_seconds" validate:"gt=0"`
	TriggerPhaseSec float64 `json:"trigger_phase_seconds" validate:"gt=0"`
	ArmTimeoutSec   float64 `json:"arm_timeout_seconds" validate:"gt=0"`
}

// RecordingConfig holds recording retention settings.
type RecordingConfig struct {
	MinKeepSec float64 `json:"min_keep_seconds" validate:"gte=0"`
	MaxAgeDays int     `json:"max_age_days" validate:"gte=0"`
}

// UploadConfig holds S3 offload settings.
type UploadConfig struct {
	recording.S3Config
	RetainHours int `json:"retain_hours" validate:"gte=0"`
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System      SystemConfig      `json:"system"`
	Web         WebConfig         `json:"web"`
	Audio       AudioConfig       `json:"audio"`
	Detection   DetectionConfig   `json:"detection"`
	Calibration CalibrationConfig `json:"calibration"`
	Recording   RecordingConfig   `json:"recording"`
	Upload      UploadConfig      `json:"upload"`
	Notify      notify.Config     `json:"notifications"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	c := &Config{filePath: filePath}
	c.applyDefaults()
	return c
}

// Load reads config from file, creating a default one if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := util.ValidatePath("system.data_dir", c.System.DataDir); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.DataDir == "" {
		c.System.DataDir = DefaultDataDir
	}
	if c.System.Port == 0 {
		c.System.Port = DefaultWebPort
	}
	if c.Web.StationName == "" {
		c.Web.StationName = DefaultStationName
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = DefaultSampleRate
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = DefaultChannels
	}
	if c.Audio.BlockFrames == 0 {
		c.Audio.BlockFrames = DefaultBlockFrames
	}
	if c.Detection.Metric == "" {
		c.Detection.Metric = DefaultMetric
	}
	if c.Detection.DefaultThreshold == 0 {
		c.Detection.DefaultThreshold = DefaultThreshold
	}
	if c.Detection.UncalibratedPolicy == "" {
		c.Detection.UncalibratedPolicy = DefaultUncalibrated
	}
	if c.Detection.TriggerHoldSec == 0 {
		c.Detection.TriggerHoldSec = DefaultTriggerHoldSec
	}
	if c.Detection.SilenceHoldSec == 0 {
		c.Detection.SilenceHoldSec = DefaultSilenceHoldSec
	}
	if c.Detection.MinDurationSec == 0 {
		c.Detection.MinDurationSec = DefaultMinDurationSec
	}
	if c.Detection.PrerollSec == 0 {
		c.Detection.PrerollSec = DefaultPrerollSec
	}
	if c.Detection.MaxTrailingSec == 0 {
		c.Detection.MaxTrailingSec = DefaultMaxTrailingSec
	}
	if c.Detection.MaxSessionMinutes == 0 {
		c.Detection.MaxSessionMinutes = DefaultMaxSessionMinutes
	}
	if c.Calibration.Derivation == "" {
		c.Calibration.Derivation = "midpoint"
	}
	if c.Calibration.ScaleFactor == 0 {
		c.Calibration.ScaleFactor = DefaultCalibrationScale
	}
	if c.Calibration.MinRatio == 0 {
		c.Calibration.MinRatio = DefaultCalibrationRatio
	}
	if c.Calibration.BaselineSec == 0 {
		c.Calibration.BaselineSec = DefaultBaselineSec
	}
	if c.Calibration.TriggerPhaseSec == 0 {
		c.Calibration.TriggerPhaseSec = DefaultTriggerPhaseSec
	}
	if c.Calibration.ArmTimeoutSec == 0 {
		c.Calibration.ArmTimeoutSec = DefaultArmTimeoutSec
	}
	if c.Recording.MinKeepSec == 0 {
		c.Recording.MinKeepSec = DefaultMinKeepSec
	}
	if c.Upload.RetainHours == 0 {
		c.Upload.RetainHours = DefaultUploadRetainHours
	}
}

// saveLocked persists the configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// BlocksPerSecond returns the device's block delivery rate.
func (c *Config) BlocksPerSecond() float64 {
	return float64(c.Audio.SampleRate) / float64(c.Audio.BlockFrames)
}

// Blocks converts a duration in seconds to a whole number of blocks, at
// least 1 for any positive duration.
func (c *Config) Blocks(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	n := int(seconds * c.BlocksPerSecond())
	if n < 1 {
		n = 1
	}
	return n
}
