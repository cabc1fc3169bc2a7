// Package recording owns the on-disk recording lifecycle: streaming WAV
// payloads, transactional finalization with metadata sidecars, optional S3
// offload and local cleanup.
package recording

import "errors"

// Sentinel errors for session operations.
var (
	// ErrSessionOpen is returned when starting a session while one is open.
	ErrSessionOpen = errors.New("a recording session is already open")

	// ErrNoSession is returned when appending or finalizing without an
	// open session.
	ErrNoSession = errors.New("no open recording session")
)

// File suffixes in the shared data directory. A completed recording is a
// .wav payload plus a .json sidecar with the same basename; a .tmp file is an
// unfinalized payload and never a valid recording.
const (
	TempSuffix     = ".tmp"
	PayloadSuffix  = ".wav"
	MetadataSuffix = ".json"
)
