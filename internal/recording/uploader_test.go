package recording

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opencapture/soundtrap/internal/eventlog"
)

func TestUploadFileOpenFailureSurfaced(t *testing.T) {
	dir := t.TempDir()

	u, err := NewUploader(S3Config{
		Bucket:          "recordings",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}, time.Hour)
	if err != nil {
		t.Fatalf("NewUploader failed: %v", err)
	}

	logPath := filepath.Join(dir, "events.jsonl")
	events, err := eventlog.New(logPath)
	if err != nil {
		t.Fatal(err)
	}
	u.SetEventLogger(events)

	u.uploadFile(uploadRequest{
		localPath: filepath.Join(dir, "missing.wav"),
		key:       "missing.wav",
	})

	_, lastErr := u.Status()
	if lastErr == "" {
		t.Error("Status reports a clean state after a failed upload")
	}

	if err := events.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), string(eventlog.UploadFailed)) {
		t.Errorf("event log missing upload failure: %s", data)
	}
}
