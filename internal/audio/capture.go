package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// ErrNoAudioDevice is returned when no audio input device is available.
var ErrNoAudioDevice = errors.New("no audio input device found")

// ErrDeviceClosed is returned from ReadBlock after the device is closed.
var ErrDeviceClosed = errors.New("capture device closed")

// CaptureConfig describes the capture stream to open.
type CaptureConfig struct {
	Device      string // device name substring; empty selects the default device
	SampleRate  int
	Channels    int
	BlockFrames int // frames per delivered block
	QueueBlocks int // bounded backlog; oldest blocks are dropped when full
}

// Device is a malgo-backed capture device that assembles the driver's
// callback buffers into fixed-size blocks. The device exclusively owns the
// underlying capture stream for its lifetime.
type Device struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	cfg    CaptureConfig

	blocks chan *Block

	mu      sync.Mutex
	pending []byte
	seq     uint64
	dropped uint64
	closed  bool
}

// OpenDevice opens the capture device and starts delivering blocks.
func OpenDevice(cfg CaptureConfig) (*Device, error) {
	if cfg.QueueBlocks <= 0 {
		cfg.QueueBlocks = 32
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	d := &Device{
		ctx:    mctx,
		cfg:    cfg,
		blocks: make(chan *Block, cfg.QueueBlocks),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.Device != "" {
		infos, err := mctx.Devices(malgo.Capture)
		if err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(cfg.Device)) {
					deviceConfig.Capture.DeviceID = info.ID.Pointer()
					slog.Info("selected capture device", "name", info.Name())
					break
				}
			}
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			d.onFrames(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	slog.Info("capture device started",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"block_frames", cfg.BlockFrames)
	return d, nil
}

// onFrames accumulates callback data and emits full blocks.
func (d *Device) onFrames(input []byte) {
	if len(input) == 0 {
		return
	}

	blockBytes := d.cfg.BlockFrames * d.cfg.Channels * BytesPerSample

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.pending = append(d.pending, input...)
	for len(d.pending) >= blockBytes {
		data := make([]byte, blockBytes)
		copy(data, d.pending[:blockBytes])
		d.pending = d.pending[blockBytes:]

		block := &Block{
			Data:       data,
			Channels:   d.cfg.Channels,
			SampleRate: d.cfg.SampleRate,
			Seq:        d.seq,
		}
		d.seq++

		select {
		case d.blocks <- block:
		default:
			// Consumer fell behind; drop the oldest buffered block.
			select {
			case <-d.blocks:
				d.dropped++
			default:
			}
			select {
			case d.blocks <- block:
			default:
			}
		}
	}
}

// ReadBlock returns the next block, blocking until one is available.
func (d *Device) ReadBlock(ctx context.Context) (*Block, error) {
	select {
	case block, ok := <-d.blocks:
		if !ok {
			return nil, ErrDeviceClosed
		}
		return block, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dropped returns the number of blocks discarded because the consumer fell
// behind the device's delivery rate.
func (d *Device) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close stops the capture stream and releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	var err error
	if d.ctx != nil {
		err = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	close(d.blocks)
	if err != nil {
		return fmt.Errorf("uninit audio context: %w", err)
	}
	return nil
}
