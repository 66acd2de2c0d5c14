// Package streamcribe is a streaming speech-to-text pipeline: capture
// audio, detect speech, segment it into bounded windows, transcribe each
// window, and reconcile the results into a monotonic confirmed transcript
// plus a replaceable working hypothesis. This file re-exports the pieces
// an embedder needs without reaching into internal packages.
package streamcribe

import (
	"context"

	"github.com/lowlat/streamcribe/pkg/capture"
	"github.com/lowlat/streamcribe/pkg/config"
	"github.com/lowlat/streamcribe/pkg/model"
	"github.com/lowlat/streamcribe/pkg/model/mocktest"
	"github.com/lowlat/streamcribe/pkg/pipeline"
	"github.com/lowlat/streamcribe/pkg/reconcile"
	"github.com/lowlat/streamcribe/pkg/segment"
	"github.com/lowlat/streamcribe/pkg/transcribe"
	"github.com/lowlat/streamcribe/pkg/vad"
)

type (
	Config        = config.Config
	Driver        = pipeline.Driver
	Handle        = pipeline.Handle
	Outputs       = pipeline.Outputs
	Update        = pipeline.Update
	Metrics       = pipeline.Metrics
	ControlFlags  = pipeline.ControlFlags
	Source        = capture.Source
	SpeechModel   = model.SpeechModel
	DecodedSegment = model.DecodedSegment
)

var (
	ErrOutputBackpressure = pipeline.ErrOutputBackpressure
	ErrStopTimeout        = pipeline.ErrStopTimeout
)

// NewDriver builds a pipeline.Driver from a validated Config, wiring the
// VAD backend, segmenter thresholds, reconciler tuning and output
// backpressure policy it describes. Construct the SpeechModel and
// capture.Source separately and pass them to Driver.Start.
func NewDriver(cfg Config, metrics *Metrics) *Driver {
	return &pipeline.Driver{
		RingCapacitySamples: cfg.RingSeconds * cfg.SampleRate,
		VADConfig: vad.Config{
			Backend:   vad.Backend(cfg.VADBackend),
			Threshold: cfg.VADThreshold,
			ModelPath: cfg.VADModelPath,
		},
		SegmentConfig: segment.Config{
			SampleRate:  cfg.SampleRate,
			EndMs:       cfg.SegmentEndMs,
			MaxWindowMs: cfg.SegmentMaxWindowMs,
			KeepTailMs:  cfg.SegmentKeepTailMs,
			MinSpeechMs: cfg.SegmentMinSpeechMs,
		},
		ReconcileConfig: reconcile.Config{
			OverlapTailChars: cfg.OverlapTailChars,
			MinOverlapChars:  cfg.MinOverlapChars,
			WorkingTailWords: cfg.WorkingTailWords,
			PromptTokenCap:   cfg.PromptTokenCap,
		},
		TranscribeConfig: transcribe.Config{
			RingSampleRate:  cfg.SampleRate,
			ModelSampleRate: 16000,
			TailMs:          cfg.TailMs,
			TickInterval:    cfg.TickInterval(),
		},
		OutputsConfig: pipeline.Config{
			ConfirmedBufferSize: cfg.ConfirmedBufferSize,
			ConfirmedTimeout:    cfg.ConfirmedTimeout(),
		},
		JoinTimeout: cfg.JoinTimeout(),
		Metrics:     metrics,
	}
}

// NewSpeechModel constructs the SpeechModel described by cfg.ModelBackend.
func NewSpeechModel(cfg Config) (SpeechModel, error) {
	switch cfg.ModelBackend {
	case config.ModelBackendAzure:
		return model.NewAzure(model.AzureConfig{
			SpeechKey:    cfg.AzureSpeechKey,
			SpeechRegion: cfg.AzureSpeechRegion,
			Language:     cfg.Language,
			DataDir:      cfg.DataDir,
		})
	case config.ModelBackendMock:
		return mocktest.New(), nil
	default:
		return model.NewWhisperCPP(model.WhisperCPPConfig{
			ModelFile:  cfg.ModelFile,
			NumThreads: cfg.NumThreads,
			Language:   cfg.Language,
		})
	}
}

// NewCaptureSource constructs the capture.Source described by
// cfg.CaptureSource.
func NewCaptureSource(cfg Config) (Source, error) {
	switch cfg.CaptureSource {
	case config.CaptureSourceWAV:
		return capture.NewWAVFile(cfg.WAVPath, 0)
	default:
		return capture.NewMic(capture.MicConfig{SampleRate: cfg.SampleRate})
	}
}

// Start is a convenience wrapper around Driver.Start using the types this
// package re-exports.
func Start(ctx context.Context, d *Driver, src Source, sm SpeechModel) (*Handle, error) {
	return d.Start(ctx, src, sm)
}
