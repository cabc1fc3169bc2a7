package calibrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/opencapture/soundtrap/internal/audio"
	"github.com/opencapture/soundtrap/internal/eventlog"
)

// ErrNoBurst is returned when no noise burst arrives within the arm window.
var ErrNoBurst = errors.New("no noise burst detected")

// RunnerConfig sizes the interactive calibration phases in blocks.
type RunnerConfig struct {
	Metric         audio.Metric
	BaselineBlocks int // quiet collection phase (≈2s)
	TriggerBlocks  int // burst collection phase (≈0.5s)
	ArmBlocks      int // how long to wait for the burst before giving up
	Options        Options
}

// Runner performs the interactive two-phase calibration against a live block
// source. The derivation itself is pure (see Derive); the runner is the thin
// collection adapter around it.
type Runner struct {
	cfg    RunnerConfig
	src    audio.BlockSource
	store  *Store
	out    io.Writer // operator prompts
	events *eventlog.Logger
}

// NewRunner returns a Runner writing prompts to out.
func NewRunner(cfg RunnerConfig, src audio.BlockSource, store *Store, out io.Writer) *Runner {
	return &Runner{cfg: cfg, src: src, store: store, out: out}
}

// SetEventLogger routes calibration outcomes to the shared event log.
func (r *Runner) SetEventLogger(events *eventlog.Logger) {
	r.events = events
}

// Run collects the baseline and trigger phases, derives the threshold and, on
// success only, replaces the stored calibration. A rejected calibration
// leaves any existing calibration untouched.
func (r *Runner) Run(ctx context.Context) (*Threshold, error) {
	threshold, err := r.run(ctx)
	if err != nil {
		_ = r.events.Log(eventlog.CalibrationFailed, "", &eventlog.CalibrationDetails{Error: err.Error()})
		return nil, err
	}
	_ = r.events.Log(eventlog.CalibrationCompleted, "", &eventlog.CalibrationDetails{
		Baseline:  threshold.Baseline,
		Trigger:   threshold.Trigger,
		Threshold: threshold.Threshold,
	})
	return threshold, nil
}

func (r *Runner) run(ctx context.Context) (*Threshold, error) {
	fmt.Fprintln(r.out, "Audio level calibration")
	fmt.Fprintln(r.out, "Keep quiet while the baseline is measured...")

	baseline, err := r.collect(ctx, r.cfg.BaselineBlocks)
	if err != nil {
		return nil, fmt.Errorf("baseline phase: %w", err)
	}
	base := mean(baseline)
	fmt.Fprintf(r.out, "Baseline volume: %.6f\n", base)
	fmt.Fprintln(r.out, "Now make a noise at the level that should trigger recording...")

	if err := r.waitForBurst(ctx, base); err != nil {
		return nil, err
	}

	trigger, err := r.collect(ctx, r.cfg.TriggerBlocks)
	if err != nil {
		return nil, fmt.Errorf("trigger phase: %w", err)
	}

	threshold, err := Derive(baseline, trigger, r.cfg.Options)
	if err != nil {
		return nil, err
	}
	threshold.Metric = string(r.cfg.Metric)

	if err := r.store.Save(threshold); err != nil {
		return nil, err
	}

	slog.Info("calibration saved",
		"baseline", threshold.Baseline,
		"trigger", threshold.Trigger,
		"threshold", threshold.Threshold)
	fmt.Fprintf(r.out, "Calibration saved: threshold %.6f\n", threshold.Threshold)
	return threshold, nil
}

// collect reads n blocks and returns their volumes.
func (r *Runner) collect(ctx context.Context, n int) ([]float64, error) {
	volumes := make([]float64, 0, n)
	for len(volumes) < n {
		block, err := r.src.ReadBlock(ctx)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, audio.BlockVolume(block, r.cfg.Metric))
	}
	return volumes, nil
}

// waitForBurst arms the trigger phase on the first block clearly above the
// baseline, giving up after ArmBlocks blocks.
func (r *Runner) waitForBurst(ctx context.Context, base float64) error {
	armLevel := base * r.cfg.Options.withDefaults().MinRatio
	for i := 0; i < r.cfg.ArmBlocks; i++ {
		block, err := r.src.ReadBlock(ctx)
		if err != nil {
			return err
		}
		v := audio.BlockVolume(block, r.cfg.Metric)
		if v > armLevel {
			fmt.Fprintf(r.out, "Burst detected (%.6f), collecting...\n", v)
			return nil
		}
	}
	return ErrNoBurst
}
