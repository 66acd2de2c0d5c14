package vad

import (
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"
)

// NeuralWindowSamples is the Silero model's native window size. The
// segmenter's 32ms frames at 16kHz line up with it exactly (512 samples).
const NeuralWindowSamples = 512

// NeuralConfig configures a Silero-backed neural detector.
type NeuralConfig struct {
	ModelPath string
	Threshold float32

	// MinSilenceDurationMs and SpeechPadMs are passed straight through to
	// the underlying detector; they tune how eagerly it reports the
	// trailing/leading edges of a speech segment.
	MinSilenceDurationMs int
	SpeechPadMs          int
}

// NeuralDetector wraps github.com/streamer45/silero-vad-go's ONNX-backed
// Silero model. Detect operates in terms of speech segments over a whole
// buffer; since the Detector contract here classifies one frame at a time,
// NeuralDetector runs Detect on each incoming frame in isolation and
// reports speech iff the model found any segment covering it.
type NeuralDetector struct {
	sd        *speech.Detector
	threshold float32
}

// NewNeuralDetector constructs a NeuralDetector from an ONNX model file.
func NewNeuralDetector(cfg NeuralConfig) (*NeuralDetector, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("vad: neural backend requires a ModelPath")
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 0.5
	}

	minSilence := cfg.MinSilenceDurationMs
	if minSilence == 0 {
		minSilence = 350
	}

	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           16000,
		WindowSize:           NeuralWindowSamples,
		Threshold:            threshold,
		MinSilenceDurationMs: minSilence,
		SpeechPadMs:          cfg.SpeechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("vad: failed to create speech detector: %w", err)
	}

	return &NeuralDetector{sd: sd, threshold: threshold}, nil
}

func (d *NeuralDetector) IsSpeech(frame []float32, sampleRate int) (bool, error) {
	if sampleRate != 16000 {
		return false, fmt.Errorf("vad: neural backend requires 16kHz input, got %d", sampleRate)
	}

	segments, err := d.sd.Detect(frame)
	if err != nil {
		return false, fmt.Errorf("vad: detect failed: %w", err)
	}

	return len(segments) > 0, nil
}

func (d *NeuralDetector) Reset() error {
	if err := d.sd.Reset(); err != nil {
		return fmt.Errorf("vad: failed to reset speech detector: %w", err)
	}
	return nil
}

func (d *NeuralDetector) Close() error {
	if err := d.sd.Destroy(); err != nil {
		return fmt.Errorf("vad: failed to destroy speech detector: %w", err)
	}
	return nil
}
