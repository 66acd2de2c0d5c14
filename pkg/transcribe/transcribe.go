// Package transcribe implements the transcriber loop: the single thread
// that turns raw ring-buffered audio into reconciled transcript text.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lowlat/streamcribe/pkg/control"
	"github.com/lowlat/streamcribe/pkg/model"
	"github.com/lowlat/streamcribe/pkg/reconcile"
	"github.com/lowlat/streamcribe/pkg/resample"
	"github.com/lowlat/streamcribe/pkg/ring"
	"github.com/lowlat/streamcribe/pkg/segment"
	"github.com/lowlat/streamcribe/pkg/vad"
)

// Publisher receives reconciled transcript updates. working updates are
// allowed to be lossy (superseded by the next one); confirmed updates must
// never be dropped silently, hence the error return.
type Publisher interface {
	PublishWorking(text string)
	PublishConfirmed(ctx context.Context, text string) error
}

// Hooks are optional observability callbacks the driver can wire to
// metrics. Every field may be left nil.
type Hooks struct {
	OnTick         func(samplesRead int)
	OnSegmentEmit  func(sampleCount int)
	OnModelLatency func(d time.Duration)
	OnBackpressure func(err error)
	OnFrameDropped func(samples int)
	OnModelError   func(err error)
	OnVADFallback  func(err error)
}

// Config tunes the loop's cadence and audio framing.
type Config struct {
	// RingSampleRate is the sample rate audio is pushed into the ring at.
	RingSampleRate int
	// ModelSampleRate is the sample rate the speech model requires.
	ModelSampleRate int
	// FrameMs is the VAD frame size, fixed by the chosen vad.Backend.
	FrameMs int
	// TailMs bounds how much audio a single tick will read from the ring,
	// even if the producer has gotten further ahead than that.
	TailMs int
	// TickInterval is how often the loop polls the ring for new samples.
	TickInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.RingSampleRate == 0 {
		c.RingSampleRate = 16000
	}
	if c.ModelSampleRate == 0 {
		c.ModelSampleRate = 16000
	}
	if c.FrameMs == 0 {
		c.FrameMs = 30
	}
	if c.TailMs == 0 {
		c.TailMs = 1000
	}
	if c.TickInterval == 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	return c
}

// Loop owns one transcription cycle: drain ring -> VAD -> segment -> model
// -> reconcile -> publish. It is not safe for concurrent use; exactly one
// goroutine should call Run.
type Loop struct {
	cfg         Config
	flags       *control.Flags
	ring        *ring.Ring
	det         vad.Detector
	fallbackDet vad.Detector
	seg         *segment.Segmenter
	model       model.SpeechModel
	rec         *reconcile.Reconciler
	pub         Publisher
	hooks       Hooks
	log         *slog.Logger

	lastCursor  uint64
	vadFellBack bool
}

// New constructs a Loop. Zero-valued Config fields fall back to sane
// defaults (16kHz, 30ms frames, 1s tail cap, 100ms tick).
func New(cfg Config, flags *control.Flags, r *ring.Ring, det vad.Detector, seg *segment.Segmenter, sm model.SpeechModel, rec *reconcile.Reconciler, pub Publisher, hooks Hooks, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		cfg:         cfg.withDefaults(),
		flags:       flags,
		ring:        r,
		det:         det,
		fallbackDet: vad.NewEnergyDetector(vad.DefaultEnergyThreshold),
		seg:         seg,
		model:       sm,
		rec:         rec,
		pub:         pub,
		hooks:       hooks,
		log:         log,
	}
}

// Run blocks until ctx is canceled or flags.Running() becomes false,
// polling the ring on a ticker. When it stops for either of those reasons
// it flushes any pending working hypothesis as a final confirmed update; an
// error from a tick is returned at once, without that flush.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.flush(context.Background())
		case <-ticker.C:
			if !l.flags.Running() {
				return l.flush(context.Background())
			}
			if err := l.tick(ctx); err != nil {
				return err
			}
			if !l.flags.Running() {
				return l.flush(context.Background())
			}
		}
	}
}

// tick reads newly-arrived ring samples, advances VAD/segmentation on each
// frame, and transcribes+reconciles any segment that falls out.
func (l *Loop) tick(ctx context.Context) error {
	cur := l.ring.WriteCursor()
	delta := cur - l.lastCursor
	if delta == 0 {
		return nil
	}

	maxSamples := uint64(l.cfg.TailMs * l.cfg.RingSampleRate / 1000)
	if delta > maxSamples {
		dropped := delta - maxSamples
		if l.hooks.OnFrameDropped != nil {
			l.hooks.OnFrameDropped(int(dropped))
		}
		l.log.Warn("transcribe: tick fell behind, dropping oldest samples", "dropped", dropped)
		delta = maxSamples
	}

	samples := l.ring.SnapshotTail(int(delta))
	l.lastCursor = cur
	if l.hooks.OnTick != nil {
		l.hooks.OnTick(len(samples))
	}

	if l.cfg.RingSampleRate != l.cfg.ModelSampleRate {
		samples = resample.Resample(samples, l.cfg.RingSampleRate, l.cfg.ModelSampleRate)
	}

	frameLen := l.cfg.FrameMs * l.cfg.ModelSampleRate / 1000
	if frameLen <= 0 {
		return fmt.Errorf("transcribe: invalid frame length for FrameMs=%d", l.cfg.FrameMs)
	}

	for off := 0; off+frameLen <= len(samples); off += frameLen {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame := samples[off : off+frameLen]
		isSpeech, err := l.classify(frame)
		if err != nil {
			return fmt.Errorf("transcribe: vad classification failed even after falling back to energy detector: %w", err)
		}

		seg, ok := l.seg.PushFrame(frame, isSpeech)
		if !ok {
			continue
		}
		if err := l.processSegment(ctx, seg); err != nil {
			return err
		}
	}

	return nil
}

// classify runs VAD on frame, falling back to the energy detector the first
// time the configured backend errors. The fallback is logged once and then
// stays in effect for the remainder of the loop's lifetime.
func (l *Loop) classify(frame []float32) (bool, error) {
	isSpeech, err := l.det.IsSpeech(frame, l.cfg.ModelSampleRate)
	if err == nil {
		return isSpeech, nil
	}

	if !l.vadFellBack {
		l.vadFellBack = true
		l.log.Warn("transcribe: vad backend failed, falling back to energy-based vad", "error", err)
		if l.hooks.OnVADFallback != nil {
			l.hooks.OnVADFallback(err)
		}
	}
	l.det = l.fallbackDet

	return l.det.IsSpeech(frame, l.cfg.ModelSampleRate)
}

func (l *Loop) processSegment(ctx context.Context, seg segment.Segment) error {
	if l.hooks.OnSegmentEmit != nil {
		l.hooks.OnSegmentEmit(len(seg.Samples))
	}

	if l.flags.Paused() {
		return nil
	}

	prompt := strings.Join(l.rec.PromptWords(), " ")

	start := time.Now()
	decoded, err := l.model.Transcribe(ctx, seg.Samples, seg.SampleRate, prompt)
	if l.hooks.OnModelLatency != nil {
		l.hooks.OnModelLatency(time.Since(start))
	}
	if err != nil {
		// Model errors are isolated to this one segment: log and move on
		// rather than tearing down the whole loop over one bad decode.
		l.log.Warn("transcribe: model inference failed, skipping segment", "error", err)
		if l.hooks.OnModelError != nil {
			l.hooks.OnModelError(err)
		}
		return nil
	}

	delta, working := l.rec.Merge(decoded.Text)
	if delta != "" {
		if err := l.pub.PublishConfirmed(ctx, delta); err != nil {
			if l.hooks.OnBackpressure != nil {
				l.hooks.OnBackpressure(err)
			}
			return err
		}
	}
	l.pub.PublishWorking(working)

	return nil
}

// flush force-emits any buffered segmenter audio and reconciles it, then
// promotes the remaining working hypothesis to confirmed, since it will
// never be revised again once the loop exits.
func (l *Loop) flush(ctx context.Context) error {
	if seg, ok := l.seg.Flush(); ok {
		if err := l.processSegment(ctx, seg); err != nil {
			return err
		}
	}

	if delta := l.rec.FlushWorking(); delta != "" {
		return l.pub.PublishConfirmed(ctx, delta)
	}

	return nil
}
