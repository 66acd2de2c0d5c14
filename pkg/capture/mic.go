package capture

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
)

// MicConfig tunes the live capture device.
type MicConfig struct {
	SampleRate int
	// ChunkFrames is the number of PCM frames malgo delivers per
	// callback. Zero lets the backend choose its own period size.
	ChunkFrames uint32
}

// Mic captures mono audio from the system's default input device through
// malgo, converting int16 PCM to float32 samples on the fly.
type Mic struct {
	cfg    MicConfig
	mctx   *malgo.AllocatedContext
	device *malgo.Device
}

// NewMic initializes the malgo audio backend context. Call Start to begin
// streaming from the default capture device.
func NewMic(cfg MicConfig) (*Mic, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: failed to init audio context: %w", err)
	}

	return &Mic{cfg: cfg, mctx: mctx}, nil
}

func (m *Mic) SampleRate() int {
	return m.cfg.SampleRate
}

// Start opens the default capture device and streams samples until ctx is
// canceled.
func (m *Mic) Start(ctx context.Context) (<-chan []float32, error) {
	out := make(chan []float32, 8)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.cfg.SampleRate)
	if m.cfg.ChunkFrames > 0 {
		deviceConfig.PeriodSizeInFrames = m.cfg.ChunkFrames
	}

	onSamples := func(_, pInput []byte, frameCount uint32) {
		if len(pInput) == 0 {
			return
		}
		samples := make([]float32, len(pInput)/2)
		for i := range samples {
			s := int16(pInput[i*2]) | int16(pInput[i*2+1])<<8
			samples[i] = float32(s) / 32768.0
		}

		select {
		case out <- samples:
		case <-ctx.Done():
		default:
			// Backpressure: drop this chunk rather than block the audio
			// callback thread, matching the ring buffer's own
			// overwrite-on-overflow policy downstream.
		}
	}

	device, err := malgo.InitDevice(m.mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		close(out)
		return nil, fmt.Errorf("capture: failed to init capture device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		close(out)
		return nil, fmt.Errorf("capture: failed to start capture device: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = device.Stop()
		close(out)
	}()

	return out, nil
}

// Close releases the device and the audio backend context.
func (m *Mic) Close() error {
	if m.device != nil {
		m.device.Uninit()
	}
	if m.mctx != nil {
		if err := m.mctx.Uninit(); err != nil {
			return fmt.Errorf("capture: failed to uninit audio context: %w", err)
		}
	}
	return nil
}
