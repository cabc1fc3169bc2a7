package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// DeviceInfo describes one capture device reported by the audio backend.
type DeviceInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// ListDevices enumerates the available capture devices. Used for startup
// diagnostics and device selection.
func ListDevices() ([]DeviceInfo, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	if len(infos) == 0 {
		return nil, ErrNoAudioDevice
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{Index: i, Name: info.Name()})
	}
	return devices, nil
}
