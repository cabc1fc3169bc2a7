package main

import (
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/opencapture/soundtrap/internal/calibrate"
	"github.com/opencapture/soundtrap/internal/config"
	"github.com/opencapture/soundtrap/internal/control"
	"github.com/opencapture/soundtrap/internal/monitor"
	"github.com/opencapture/soundtrap/internal/recording"
	"github.com/opencapture/soundtrap/internal/server"
)

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Version     string
	Year        int
	StationName string
}

// Server is an HTTP server that provides the web interface for the recorder.
type Server struct {
	config   *config.Config
	mon      *monitor.Monitor
	gate     *control.Gate
	store    *calibrate.Store
	commands *server.CommandHandler
	version  *VersionChecker
}

// NewServer returns a new Server wired to the capture loop and gate.
func NewServer(cfg *config.Config, mon *monitor.Monitor, gate *control.Gate, store *calibrate.Store) *Server {
	return &Server{
		config:   cfg,
		mon:      mon,
		gate:     gate,
		store:    store,
		commands: server.NewCommandHandler(mon, gate, store, cfg.System.DataDir, cfg.Notify.WebhookURL, cfg.Web.StationName),
		version:  NewVersionChecker(),
	}
}

// handleWebSocket handles bidirectional WebSocket communication for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Only the writer goroutine writes to the connection.
	send := make(chan any, 16)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	go s.runWebSocketWriter(conn, send)
	go s.runWebSocketReader(conn, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn interface {
	WriteJSON(v any) error
	Close() error
}, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(conn interface{ ReadJSON(v any) error }, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop pushes periodic volume and status updates.
func (s *Server) runWebSocketEventLoop(send chan any, done, statusUpdate <-chan struct{}) {
	volumeTicker := time.NewTicker(100 * time.Millisecond) // 10 fps for the level meter
	statusTicker := time.NewTicker(3 * time.Second)
	defer volumeTicker.Stop()
	defer statusTicker.Stop()

	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	if !trySend(s.buildWSStatus()) {
		close(send)
		return
	}

	for {
		select {
		case <-done:
			close(send)
			return
		case <-statusUpdate:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		case <-volumeTicker.C:
			st := s.mon.Status()
			if !trySend(map[string]any{"type": "volume", "volume": st.Volume, "threshold": st.Threshold}) {
				close(send)
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		}
	}
}

// buildWSStatus returns the current WebSocket status message.
func (s *Server) buildWSStatus() map[string]any {
	return map[string]any{
		"type":       "status",
		"monitor":    s.mon.Status(),
		"enabled":    s.gate.Enabled(),
		"calibrated": s.store.Calibrated(),
		"station":    s.config.Web.StationName,
		"version":    s.version.Info(),
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/api/status", s.handleAPIStatus)
	mux.HandleFunc("/api/recordings", s.handleAPIRecordings)
	mux.HandleFunc("/api/control", s.handleAPIControl)

	// Finalized recordings are served straight from the data directory.
	mux.HandleFunc("/recordings/", s.handleRecordingFile)

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// handleIndex serves the single-page web interface.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	err := indexTmpl.Execute(w, indexData{
		Version:     Version,
		Year:        time.Now().Year(),
		StationName: s.config.Web.StationName,
	})
	if err != nil {
		slog.Error("failed to write index.html", "error", err)
	}
}

// handleRecordingFile serves a completed recording payload or sidecar.
// Only files listed by the metadata index are reachable, so unfinalized
// .tmp payloads stay hidden.
func (s *Server) handleRecordingFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.URL.Path)

	basename := name
	for _, suffix := range []string{recording.PayloadSuffix, recording.MetadataSuffix} {
		if filepath.Ext(name) == suffix {
			basename = name[:len(name)-len(suffix)]
		}
	}

	m, err := recording.FindRecording(s.config.System.DataDir, basename)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if name != m.SoundFile && name != m.JSONFile {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filepath.Join(s.config.System.DataDir, name))
}

// Start binds the listen port and begins serving. Binding happens here so a
// busy port fails startup instead of surfacing later from a goroutine.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() (*http.Server, error) {
	addr := fmt.Sprintf(":%d", s.config.System.Port)
	slog.Info("starting web server", "addr", addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: s.SetupRoutes(),
	}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv, nil
}
