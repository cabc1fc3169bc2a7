package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencapture/soundtrap/internal/calibrate"
	"github.com/opencapture/soundtrap/internal/control"
	"github.com/opencapture/soundtrap/internal/monitor"
	"github.com/opencapture/soundtrap/internal/notify"
	"github.com/opencapture/soundtrap/internal/recording"
)

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	mon        *monitor.Monitor
	gate       *control.Gate
	store      *calibrate.Store
	dataDir    string
	webhookURL string
	station    string
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(mon *monitor.Monitor, gate *control.Gate, store *calibrate.Store, dataDir, webhookURL, station string) *CommandHandler {
	return &CommandHandler{
		mon:        mon,
		gate:       gate,
		store:      store,
		dataDir:    dataDir,
		webhookURL: webhookURL,
		station:    station,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "control/set")
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	parts := strings.SplitN(cmd.Type, "/", 2)
	namespace := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch namespace {
	case "control":
		h.handleControl(action, cmd, send)
	case "detection":
		h.handleDetection(action, cmd, send)
	case "recordings":
		h.handleRecordings(action, cmd, send)
	case "status":
		h.handleStatus(action, send)
	case "notifications":
		h.handleNotifications(action, cmd, send)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// handleControl routes control/* commands
func (h *CommandHandler) handleControl(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "set":
		HandleCommand(cmd, send, func(req *ControlRequest) error {
			return h.gate.SetEnabled(*req.Enabled)
		})
	case "get":
		SendSuccess(send, cmd.Type, map[string]any{"enabled": h.gate.Enabled()})
	default:
		slog.Warn("unknown control action", "action", action)
	}
}

// handleDetection routes detection/* commands
func (h *CommandHandler) handleDetection(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		HandleCommand(cmd, send, func(req *ThresholdUpdateRequest) error {
			h.mon.SetThreshold(*req.Threshold)
			return nil
		})
	case "get":
		t, err := h.store.Load()
		if errors.Is(err, calibrate.ErrNotCalibrated) {
			SendSuccess(send, cmd.Type, map[string]any{
				"calibrated": false,
				"threshold":  h.mon.Status().Threshold,
			})
			return
		}
		if err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		SendSuccess(send, cmd.Type, map[string]any{
			"calibrated":  true,
			"threshold":   h.mon.Status().Threshold,
			"calibration": t,
		})
	default:
		slog.Warn("unknown detection action", "action", action)
	}
}

// handleRecordings routes recordings/* commands
func (h *CommandHandler) handleRecordings(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		recordings, err := recording.ListRecordings(h.dataDir)
		if err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		SendSuccess(send, cmd.Type, map[string]any{"recordings": recordings})
	case "delete":
		HandleCommand(cmd, send, func(req *RecordingDeleteRequest) error {
			return h.deleteRecording(req.Basename)
		})
	default:
		slog.Warn("unknown recordings action", "action", action)
	}
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string, send chan<- any) {
	switch action {
	case "get":
		// Status is pushed automatically; explicit get triggers an immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown status action", "action", action)
	}
}

// handleNotifications routes notifications/* commands
func (h *CommandHandler) handleNotifications(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "test":
		if err := notify.SendTestWebhook(h.webhookURL, h.station); err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		SendSuccess(send, cmd.Type, map[string]any{"message": "test notification sent"})
	default:
		slog.Warn("unknown notifications action", "action", action)
	}
}

// deleteRecording removes a completed recording. The sidecar goes first so
// consumers stop listing the recording before the payload disappears.
func (h *CommandHandler) deleteRecording(basename string) error {
	if strings.ContainsAny(basename, "/\\") || strings.Contains(basename, "..") {
		return fmt.Errorf("invalid basename")
	}

	m, err := recording.FindRecording(h.dataDir, basename)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(h.dataDir, m.JSONFile)); err != nil {
		return fmt.Errorf("remove metadata: %w", err)
	}
	if err := os.Remove(filepath.Join(h.dataDir, m.SoundFile)); err != nil {
		return fmt.Errorf("remove payload: %w", err)
	}
	slog.Info("recording deleted", "basename", basename)
	return nil
}
