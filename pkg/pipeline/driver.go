// Package pipeline wires capture, VAD, segmentation, the speech model and
// the reconciler into one running transcription session, exposing a
// Start/Stop/Pause/Resume control surface over the underlying threads.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lowlat/streamcribe/pkg/capture"
	"github.com/lowlat/streamcribe/pkg/control"
	"github.com/lowlat/streamcribe/pkg/model"
	"github.com/lowlat/streamcribe/pkg/reconcile"
	"github.com/lowlat/streamcribe/pkg/ring"
	"github.com/lowlat/streamcribe/pkg/segment"
	"github.com/lowlat/streamcribe/pkg/transcribe"
	"github.com/lowlat/streamcribe/pkg/vad"
)

// ControlFlags is the shared running/ready/paused state, re-exported here
// so embedders never need to import pkg/control directly.
type ControlFlags = control.Flags

// ErrStopTimeout is returned by Handle.Stop when the worker threads do not
// finish within the configured join timeout. The threads are left
// detached (running in the background, no longer tracked) rather than
// forcibly killed: in-flight model inference is never interrupted.
var ErrStopTimeout = errors.New("pipeline: stop timed out waiting for worker threads")

// Driver holds the static configuration needed to start a transcription
// session: the ring buffer size, VAD/segmentation tuning, and channel
// backpressure policy. One Driver can be started multiple times
// sequentially (not concurrently).
type Driver struct {
	RingCapacitySamples int
	VADConfig           vad.Config
	SegmentConfig       segment.Config
	ReconcileConfig     reconcile.Config
	TranscribeConfig    transcribe.Config
	OutputsConfig       Config
	JoinTimeout         time.Duration
	Hooks               transcribe.Hooks
	Metrics             *Metrics
	Logger              *slog.Logger
}

func (d *Driver) withDefaults() {
	if d.RingCapacitySamples == 0 {
		d.RingCapacitySamples = 16000 * 30 // 30s at 16kHz
	}
	if d.JoinTimeout == 0 {
		d.JoinTimeout = 2 * time.Second
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics != nil && d.Hooks.OnTick == nil && d.Hooks.OnSegmentEmit == nil &&
		d.Hooks.OnModelLatency == nil && d.Hooks.OnBackpressure == nil && d.Hooks.OnFrameDropped == nil &&
		d.Hooks.OnModelError == nil && d.Hooks.OnVADFallback == nil {
		d.Hooks = d.Metrics.Hooks()
	}
}

// Handle represents one running session, started by Driver.Start. It owns
// the goroutines feeding the ring from the capture source and running the
// transcriber loop.
type Handle struct {
	flags   *ControlFlags
	outputs *Outputs
	ring    *ring.Ring
	src     capture.Source
	model   model.SpeechModel
	logger  *slog.Logger

	joinTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	doneCh   chan struct{}
	errCh    chan error
	doneOnce sync.Once
}

// Start spawns the capture-feeding goroutine and the transcriber loop and
// returns a Handle to control the running session. The speech model's
// lifetime is owned by the caller; Stop does not close it.
func (d *Driver) Start(ctx context.Context, src capture.Source, sm model.SpeechModel) (*Handle, error) {
	d.withDefaults()

	det, err := vad.New(d.VADConfig)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to construct vad detector: %w", err)
	}

	audioRing := ring.New(d.RingCapacitySamples)
	flags := control.New()
	outputs := NewOutputs(d.OutputsConfig)
	rec := reconcile.New(d.ReconcileConfig)

	tcfg := d.TranscribeConfig
	if tcfg.RingSampleRate == 0 {
		tcfg.RingSampleRate = src.SampleRate()
	}
	if tcfg.FrameMs == 0 {
		tcfg.FrameMs = d.VADConfig.Backend.FrameMs()
	}

	segCfg := d.SegmentConfig
	if segCfg.SampleRate == 0 {
		segCfg.SampleRate = src.SampleRate()
	}
	if segCfg.FrameMs == 0 {
		segCfg.FrameMs = tcfg.FrameMs
	}
	seg := segment.New(segCfg)

	loop := transcribe.New(tcfg, flags, audioRing, det, seg, sm, rec, outputs, d.Hooks, d.Logger)

	runCtx, cancel := context.WithCancel(ctx)

	h := &Handle{
		flags:       flags,
		outputs:     outputs,
		ring:        audioRing,
		src:         src,
		model:       sm,
		logger:      d.Logger,
		joinTimeout: d.JoinTimeout,
		cancel:      cancel,
		doneCh:      make(chan struct{}),
		errCh:       make(chan error, 1),
	}

	samples, err := src.Start(runCtx)
	if err != nil {
		cancel()
		_ = det.Close()
		return nil, fmt.Errorf("pipeline: failed to start capture source: %w", err)
	}

	flags.SetRunning(true)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		for chunk := range samples {
			audioRing.Push(chunk)
		}
	}()

	go func() {
		defer h.wg.Done()
		defer det.Close()
		err := loop.Run(runCtx)
		h.done(err)
	}()

	flags.SetReady(true)

	return h, nil
}

// done is the single-shot shutdown path shared by a natural loop exit and
// an explicit Stop call: it records the loop's terminal error (if any)
// and closes doneCh exactly once.
func (h *Handle) done(err error) {
	h.doneOnce.Do(func() {
		h.flags.SetRunning(false)
		if err != nil {
			h.errCh <- err
		}
		close(h.doneCh)
	})
}

// Done returns a channel closed once the session's worker threads have
// exited.
func (h *Handle) Done() <-chan struct{} {
	return h.doneCh
}

// Err returns the transcriber loop's terminal error, if any, without
// blocking. Call after Done is closed for a meaningful result.
func (h *Handle) Err() error {
	select {
	case err := <-h.errCh:
		return err
	default:
		return nil
	}
}

// Pause gates model invocation: capture and VAD continue running so the
// segmenter does not lose its place, but no audio reaches the speech
// model until Resume.
func (h *Handle) Pause() {
	h.flags.SetPaused(true)
}

// Resume un-gates model invocation after a Pause.
func (h *Handle) Resume() {
	h.flags.SetPaused(false)
}

// Stop asks the session to wind down, waits up to JoinTimeout for its
// worker threads to exit, and closes the output channels. If the timeout
// elapses first, the threads are left detached (still running, no longer
// joined) and ErrStopTimeout is returned; in-flight model inference is
// never interrupted.
func (h *Handle) Stop(ctx context.Context) error {
	h.flags.SetRunning(false)
	h.cancel()

	joined := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(joined)
	}()

	timer := time.NewTimer(h.joinTimeout)
	defer timer.Stop()

	select {
	case <-joined:
	case <-ctx.Done():
		h.logger.Warn("pipeline: stop canceled before worker threads joined")
		return ctx.Err()
	case <-timer.C:
		h.logger.Warn("pipeline: worker threads did not join within timeout, detaching", "timeout", h.joinTimeout)
		return ErrStopTimeout
	}

	h.done(nil)
	h.outputs.Close()
	if err := h.src.Close(); err != nil {
		h.logger.Warn("pipeline: failed to close capture source", "error", err)
	}

	return h.Err()
}

// Outputs returns the session's output channels.
func (h *Handle) Outputs() *Outputs {
	return h.outputs
}

// Flags returns the session's control flags, mainly useful for tests and
// metrics exporters.
func (h *Handle) Flags() *ControlFlags {
	return h.flags
}
