package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/opencapture/soundtrap/internal/types"
	"github.com/opencapture/soundtrap/internal/util"
)

const (
	releaseURL           = "https://api.github.com/repos/opencapture/soundtrap/releases/latest"
	releaseCheckDelay    = 30 * time.Second // first check waits so startup is never blocked
	releaseCheckInterval = 24 * time.Hour
	releaseCheckTimeout  = 30 * time.Second
)

// VersionChecker polls GitHub for the latest release once a day and reports
// update availability in status responses. It is safe for concurrent use.
type VersionChecker struct {
	mu     sync.RWMutex
	latest string
	url    string
	stopCh chan struct{}
}

// NewVersionChecker starts the background release check.
func NewVersionChecker() *VersionChecker {
	vc := &VersionChecker{
		url:    releaseURL,
		stopCh: make(chan struct{}),
	}
	go vc.run()
	return vc
}

// Stop stops the background check.
func (vc *VersionChecker) Stop() {
	close(vc.stopCh)
}

func (vc *VersionChecker) run() {
	timer := time.NewTimer(releaseCheckDelay)
	defer timer.Stop()

	for {
		select {
		case <-vc.stopCh:
			return
		case <-timer.C:
		}

		latest, err := fetchLatestRelease(vc.url)
		switch {
		case err != nil:
			// A recorder works fine without knowing the latest release.
			slog.Debug("release check failed", "error", err)
		case latest != "":
			vc.mu.Lock()
			vc.latest = latest
			vc.mu.Unlock()
		}

		timer.Reset(releaseCheckInterval)
	}
}

// fetchLatestRelease returns the newest stable release tag, or "" when there
// is nothing to report (no releases yet, or only drafts/prereleases).
func fetchLatestRelease(url string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "soundtrap/"+Version)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		// No releases published yet.
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release check: unexpected status %d", resp.StatusCode)
	}

	var release struct {
		TagName    string `json:"tag_name"`
		Draft      bool   `json:"draft"`
		Prerelease bool   `json:"prerelease"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("release check: %w", err)
	}

	if release.Draft || release.Prerelease || release.TagName == "" {
		return "", nil
	}
	return normalizeVersion(release.TagName), nil
}

// Info returns the current version info for the frontend.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	latest := vc.latest
	vc.mu.RUnlock()

	current := normalizeVersion(Version)
	info := types.VersionInfo{
		Current:   current,
		Latest:    latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}

	if latest != "" && current != "dev" && current != "unknown" {
		info.UpdateAvail = isNewerVersion(latest, current)
	}

	return info
}

// normalizeVersion strips the leading "v" used in release tags.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewerVersion reports whether latest is newer than current.
func isNewerVersion(latest, current string) bool {
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	return semver.Compare(latest, current) > 0
}
