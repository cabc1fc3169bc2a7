package recording

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Pruner removes completed recordings older than a maximum age from the data
// directory, keeping unattended devices from filling their storage.
type Pruner struct {
	dataDir string
	maxAge  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPruner returns a Pruner; a maxAge of zero disables pruning.
func NewPruner(dataDir string, maxAge time.Duration) *Pruner {
	return &Pruner{
		dataDir: dataDir,
		maxAge:  maxAge,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the daily pruning scheduler.
func (p *Pruner) Start() {
	if p.maxAge <= 0 {
		close(p.doneCh)
		return
	}
	go p.run()
}

// Stop stops the scheduler.
func (p *Pruner) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *Pruner) run() {
	defer close(p.doneCh)

	p.pruneOnce()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pruneOnce()
		}
	}
}

func (p *Pruner) pruneOnce() {
	recordings, err := ListRecordings(p.dataDir)
	if err != nil {
		slog.Warn("prune scan failed", "error", err)
		return
	}

	cutoff := time.Now().Add(-p.maxAge)
	removed := 0
	for _, m := range recordings {
		if m.Timestamp.After(cutoff) {
			continue
		}
		// Sidecar first so a half-removed pair is never listed as valid.
		if err := os.Remove(filepath.Join(p.dataDir, m.JSONFile)); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to prune metadata", "basename", m.Basename, "error", err)
			continue
		}
		if err := os.Remove(filepath.Join(p.dataDir, m.SoundFile)); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to prune payload", "basename", m.Basename, "error", err)
		}
		removed++
	}

	if removed > 0 {
		slog.Info("pruned old recordings", "count", removed)
	}
}
