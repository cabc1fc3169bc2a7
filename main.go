// Package main provides a sound-activated recorder that watches an audio
// input and writes WAV recordings with metadata sidecars whenever the level
// crosses a calibrated threshold.
//
// Usage:
//
//	soundtrap [-config path/to/config.json] [-calibrate | -export file.wav | -devices]
//
// If -config is not specified, the recorder looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/opencapture/soundtrap/internal/audio"
	"github.com/opencapture/soundtrap/internal/calibrate"
	"github.com/opencapture/soundtrap/internal/config"
	"github.com/opencapture/soundtrap/internal/control"
	"github.com/opencapture/soundtrap/internal/detect"
	"github.com/opencapture/soundtrap/internal/eventlog"
	"github.com/opencapture/soundtrap/internal/export"
	"github.com/opencapture/soundtrap/internal/monitor"
	"github.com/opencapture/soundtrap/internal/notify"
	"github.com/opencapture/soundtrap/internal/recording"
	"github.com/opencapture/soundtrap/internal/util"
)

func main() {
	os.Exit(run())
}

// run parses flags and dispatches to the selected mode. Separated from main
// so deferred cleanup runs before the exit code is set.
func run() int {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	calibrateMode := flag.Bool("calibrate", false, "Run interactive calibration and exit")
	disabled := flag.Bool("disabled", false, "Clear the recording enable marker at startup")
	exportPath := flag.String("export", "", "Export a WAV recording to CSV and exit")
	listDevices := flag.Bool("devices", false, "List capture devices and exit")
	flag.Parse()

	if *debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return 0
	}

	if *listDevices {
		devices, err := audio.ListDevices()
		if err != nil {
			slog.Error("failed to list capture devices", "error", err)
			return 1
		}
		for _, d := range devices {
			fmt.Printf("%d: %s\n", d.Index, d.Name)
		}
		return 0
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			return 1
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	if *exportPath != "" {
		csvPath, err := export.ExportFile(*exportPath, export.Options{
			BlockFrames: cfg.Audio.BlockFrames,
			Metric:      audio.Metric(cfg.Detection.Metric),
		})
		if err != nil {
			slog.Error("export failed", "file", *exportPath, "error", err)
			return 1
		}
		slog.Info("export completed", "file", csvPath)
		return 0
	}

	if err := util.CheckPathWritable(cfg.System.DataDir); err != nil {
		slog.Error("data directory is not usable", "path", cfg.System.DataDir, "error", err)
		return 1
	}

	device, err := audio.OpenDevice(audio.CaptureConfig{
		Device:      cfg.Audio.Device,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		BlockFrames: cfg.Audio.BlockFrames,
	})
	if err != nil {
		slog.Error("failed to open capture device", "error", err)
		return 1
	}
	defer func() {
		if err := device.Close(); err != nil {
			slog.Warn("failed to close capture device", "error", err)
		}
	}()

	store := calibrate.NewStore(cfg.System.DataDir)

	if *calibrateMode {
		return runCalibration(cfg, device, store)
	}

	return runRecorder(cfg, device, store, *disabled)
}

// runCalibration performs the interactive calibration and reports the result.
func runCalibration(cfg *config.Config, device *audio.Device, store *calibrate.Store) int {
	ctx, cancel := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer cancel()

	var events *eventlog.Logger
	if cfg.System.EventLog != "" {
		var err error
		events, err = eventlog.New(cfg.System.EventLog)
		if err != nil {
			slog.Error("failed to open event log", "error", err)
			return 1
		}
		defer func() {
			if err := events.Close(); err != nil {
				slog.Warn("failed to close event log", "error", err)
			}
		}()
	}

	runner := calibrate.NewRunner(calibrate.RunnerConfig{
		Metric:         audio.Metric(cfg.Detection.Metric),
		BaselineBlocks: cfg.Blocks(cfg.Calibration.BaselineSec),
		TriggerBlocks:  cfg.Blocks(cfg.Calibration.TriggerPhaseSec),
		ArmBlocks:      cfg.Blocks(cfg.Calibration.ArmTimeoutSec),
		Options: calibrate.Options{
			Derivation:  calibrate.Derivation(cfg.Calibration.Derivation),
			ScaleFactor: cfg.Calibration.ScaleFactor,
			MinRatio:    cfg.Calibration.MinRatio,
		},
	}, device, store, os.Stdout)
	runner.SetEventLogger(events)

	threshold, err := runner.Run(ctx)
	if err != nil {
		slog.Error("calibration failed", "error", err)
		return 1
	}
	notify.New(&cfg.Notify, cfg.Web.StationName).CalibrationCompleted(threshold.Threshold)
	return 0
}

// runRecorder starts the capture loop, web server and supporting workers.
func runRecorder(cfg *config.Config, device *audio.Device, store *calibrate.Store, startDisabled bool) int {
	threshold, calibrated, err := resolveThreshold(cfg, store)
	if err != nil {
		slog.Error("cannot start", "error", err)
		return 1
	}

	gate := control.NewGate(cfg.System.DataDir)
	if startDisabled {
		if err := gate.SetEnabled(false); err != nil {
			slog.Warn("failed to clear enable marker", "error", err)
		}
	}
	if !calibrated && cfg.Detection.UncalibratedPolicy == "refuse" {
		// Monitoring still runs so the level meter works, but nothing is
		// written until a calibration exists and the gate is re-enabled.
		slog.Warn("not calibrated, recording disabled until calibration runs")
		if err := gate.SetEnabled(false); err != nil {
			slog.Warn("failed to clear enable marker", "error", err)
		}
	}

	var events *eventlog.Logger
	if cfg.System.EventLog != "" {
		events, err = eventlog.New(cfg.System.EventLog)
		if err != nil {
			slog.Error("failed to open event log", "error", err)
			return 1
		}
		defer func() {
			if err := events.Close(); err != nil {
				slog.Warn("failed to close event log", "error", err)
			}
		}()
	}

	writer := recording.NewSessionWriter(recording.SessionConfig{
		DataDir:        cfg.System.DataDir,
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		MinKeepSeconds: cfg.Recording.MinKeepSec,
	})

	mon := monitor.New(monitor.Config{
		Metric: audio.Metric(cfg.Detection.Metric),
		Detector: detect.Config{
			Threshold:   threshold,
			TriggerHold: cfg.Blocks(cfg.Detection.TriggerHoldSec),
			SilenceHold: cfg.Blocks(cfg.Detection.SilenceHoldSec),
			MinDuration: cfg.Blocks(cfg.Detection.MinDurationSec),
		},
		PrerollBlocks:     cfg.Blocks(cfg.Detection.PrerollSec),
		MaxTrailingBlocks: cfg.Blocks(cfg.Detection.MaxTrailingSec),
		MaxSessionBlocks:  cfg.Blocks(float64(cfg.Detection.MaxSessionMinutes) * 60),
	}, device, writer, gate, events)

	notifier := notify.New(&cfg.Notify, cfg.Web.StationName)

	var uploader *recording.Uploader
	if cfg.Upload.IsConfigured() {
		uploader, err = recording.NewUploader(cfg.Upload.S3Config, time.Duration(cfg.Upload.RetainHours)*time.Hour)
		if err != nil {
			slog.Error("failed to create uploader", "error", err)
			return 1
		}
		uploader.SetEventLogger(events)
		uploader.Start()
		defer uploader.Stop()

		go func() {
			if err := recording.TestS3Connection(&cfg.Upload.S3Config); err != nil {
				slog.Warn("S3 connection test failed", "error", err)
			}
		}()
	}

	mon.SetCompletionHandler(func(m *recording.Metadata) {
		notifier.RecordingCompleted(m)
		if uploader != nil {
			uploader.Enqueue(cfg.System.DataDir, m)
		}
	})
	mon.SetStorageErrorHandler(notifier.StorageError)

	pruner := recording.NewPruner(cfg.System.DataDir, time.Duration(cfg.Recording.MaxAgeDays)*24*time.Hour)
	pruner.Start()
	defer pruner.Stop()

	srv := NewServer(cfg, mon, gate, store)
	httpServer, err := srv.Start()
	if err != nil {
		slog.Error("failed to start web server", "error", err)
		srv.version.Stop()
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer cancel()

	monErr := make(chan error, 1)
	go func() { monErr <- mon.Run(ctx) }()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		cancel()
		// Wait for the capture loop to finalize any open session.
		select {
		case err := <-monErr:
			if err != nil {
				slog.Error("capture loop failed", "error", err)
				exitCode = 1
			}
		case <-time.After(10 * time.Second):
			slog.Warn("capture loop did not stop in time")
		}
	case err := <-monErr:
		if err != nil {
			slog.Error("capture loop failed", "error", err)
			exitCode = 1
		}
		cancel()
	}

	srv.version.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return exitCode
}

// resolveThreshold loads the calibrated threshold, falling back to the
// configured default when no calibration exists. The caller decides what an
// uncalibrated start means for the recording gate.
func resolveThreshold(cfg *config.Config, store *calibrate.Store) (threshold float64, calibrated bool, err error) {
	t, err := store.Load()
	if err == nil {
		slog.Info("using calibrated threshold",
			"threshold", t.Threshold,
			"calibrated_at", util.HumanTime(t.CalibratedAt))
		return t.Threshold, true, nil
	}
	if !errors.Is(err, calibrate.ErrNotCalibrated) {
		return 0, false, err
	}

	slog.Warn("no calibration present, using default threshold",
		"threshold", cfg.Detection.DefaultThreshold)
	return cfg.Detection.DefaultThreshold, false, nil
}
