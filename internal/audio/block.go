// Package audio provides audio block handling, volume analysis and
// capture-device access.
package audio

import (
	"context"
)

const (
	// BytesPerSample is the size of one S16LE sample.
	BytesPerSample = 2
	// MaxSampleValue is the maximum absolute value for 16-bit signed audio.
	MaxSampleValue = 32768.0
)

// Block is one fixed-size chunk of interleaved S16LE PCM read from the
// capture device. Blocks are immutable once produced.
type Block struct {
	Data       []byte // interleaved S16LE samples
	Channels   int
	SampleRate int
	Seq        uint64 // sequence index assigned by the producer
}

// BlockSource delivers audio blocks. ReadBlock blocks until the next full
// block is available or the context is done.
type BlockSource interface {
	ReadBlock(ctx context.Context) (*Block, error)
}

// Frames returns the number of frames (one sample per channel) in the block.
func (b *Block) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Data) / (BytesPerSample * b.Channels)
}

// SampleCount returns the total number of samples across all channels.
func (b *Block) SampleCount() int {
	return len(b.Data) / BytesPerSample
}
