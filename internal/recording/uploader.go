package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/opencapture/soundtrap/internal/eventlog"
)

// uploadRequest represents one file ready for S3 upload.
type uploadRequest struct {
	localPath   string
	key         string
	contentType string
	cleanup     bool // remove the local file after the retain window
}

// Uploader offloads completed recordings (payload + sidecar) to S3-compatible
// storage and removes local copies after a retain window. Upload failures
// never affect capture; they are logged and surfaced via LastError.
type Uploader struct {
	cfg    S3Config
	client *s3.Client
	retain time.Duration

	queue  chan uploadRequest
	stopCh chan struct{}
	wg     sync.WaitGroup
	events *eventlog.Logger

	mu             sync.Mutex
	lastUploadTime *time.Time
	lastUploadErr  string
	uploadedFiles  map[string]time.Time // path -> upload time
}

// NewUploader returns an Uploader; call Start to begin processing.
func NewUploader(cfg S3Config, retain time.Duration) (*Uploader, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("S3 is not configured")
	}
	if retain <= 0 {
		retain = time.Hour
	}
	return &Uploader{
		cfg:           cfg,
		client:        createS3Client(&cfg),
		retain:        retain,
		queue:         make(chan uploadRequest, 100),
		stopCh:        make(chan struct{}),
		uploadedFiles: make(map[string]time.Time),
	}, nil
}

// SetEventLogger routes upload outcomes to the shared event log.
func (u *Uploader) SetEventLogger(events *eventlog.Logger) {
	u.events = events
}

// Start launches the upload and cleanup workers.
func (u *Uploader) Start() {
	u.wg.Add(2)
	go u.uploadWorker()
	go u.cleanupWorker()
	slog.Info("uploader started", "bucket", u.cfg.Bucket)
}

// Stop drains the queue and stops the workers.
func (u *Uploader) Stop() {
	close(u.stopCh)
	u.wg.Wait()
	slog.Info("uploader stopped")
}

// Enqueue queues a completed recording's payload and sidecar for upload.
func (u *Uploader) Enqueue(dataDir string, m *Metadata) {
	u.enqueueFile(filepath.Join(dataDir, m.SoundFile), m.SoundFile, "audio/wav")
	u.enqueueFile(filepath.Join(dataDir, m.JSONFile), m.JSONFile, "application/json")
}

// Status returns the last upload time and error for status reporting.
func (u *Uploader) Status() (last *time.Time, lastErr string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastUploadTime, u.lastUploadErr
}

func (u *Uploader) enqueueFile(localPath, name, contentType string) {
	req := uploadRequest{
		localPath:   localPath,
		key:         path.Join(u.cfg.Prefix, name),
		contentType: contentType,
		cleanup:     true,
	}

	select {
	case u.queue <- req:
		slog.Info("queued file for upload", "file", name)
	default:
		slog.Warn("upload queue full", "file", name)
	}
}

// uploadWorker processes the upload queue, draining it on stop.
func (u *Uploader) uploadWorker() {
	defer u.wg.Done()

	for {
		select {
		case <-u.stopCh:
			for {
				select {
				case req := <-u.queue:
					u.uploadFile(req)
				default:
					return
				}
			}
		case req := <-u.queue:
			u.uploadFile(req)
		}
	}
}

func (u *Uploader) uploadFile(req uploadRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	file, err := os.Open(req.localPath)
	if err != nil {
		slog.Error("failed to open file for upload", "path", req.localPath, "error", err)
		u.recordFailure(req.key, err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close file after upload", "path", req.localPath, "error", err)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		slog.Error("failed to stat file for upload", "path", req.localPath, "error", err)
		u.recordFailure(req.key, err)
		return
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(req.key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(req.contentType),
	})

	if err != nil {
		slog.Error("upload failed", "key", req.key, "error", err)
		u.recordFailure(req.key, err)
		return
	}

	now := time.Now()
	u.mu.Lock()
	u.lastUploadTime = &now
	u.lastUploadErr = ""
	if req.cleanup {
		u.uploadedFiles[req.localPath] = now
	}
	u.mu.Unlock()

	_ = u.events.Log(eventlog.UploadCompleted, "", &eventlog.UploadDetails{Key: req.key})
	slog.Info("upload completed", "key", req.key)
}

// recordFailure surfaces a failed upload in Status and the event log.
func (u *Uploader) recordFailure(key string, err error) {
	u.mu.Lock()
	u.lastUploadErr = err.Error()
	u.mu.Unlock()
	_ = u.events.Log(eventlog.UploadFailed, "", &eventlog.UploadDetails{Key: key, Error: err.Error()})
}

// cleanupWorker periodically removes local files past the retain window.
func (u *Uploader) cleanupWorker() {
	defer u.wg.Done()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-u.stopCh:
			return
		case <-ticker.C:
			u.cleanupUploaded()
		}
	}
}

func (u *Uploader) cleanupUploaded() {
	u.mu.Lock()
	defer u.mu.Unlock()

	cutoff := time.Now().Add(-u.retain)
	for p, uploadedAt := range u.uploadedFiles {
		if uploadedAt.Before(cutoff) {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				slog.Warn("failed to clean up uploaded file", "path", p, "error", err)
			} else {
				slog.Debug("cleaned up uploaded file", "path", p)
			}
			delete(u.uploadedFiles, p)
		}
	}
}
