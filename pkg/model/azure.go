package model

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
)

const (
	azureSampleRate = 16000
	azureBitDepth   = 16
	azureChannels   = 1
)

// AzureConfig configures the Azure Cognitive Services speech-to-text
// backend.
type AzureConfig struct {
	SpeechKey    string
	SpeechRegion string
	Language     string
	DataDir      string
}

func (c AzureConfig) IsValid() error {
	if c.SpeechKey == "" {
		return fmt.Errorf("model: invalid SpeechKey: should not be empty")
	}
	if c.SpeechRegion == "" {
		return fmt.Errorf("model: invalid SpeechRegion: should not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("model: invalid DataDir: should not be empty")
	}
	return nil
}

// Azure transcribes bounded audio windows one at a time through Azure's
// recognize-once API. Each call wires up its own push stream and
// recognizer against a shared SpeechConfig, since the SDK binds a
// recognizer's audio lifetime to a single stream.
type Azure struct {
	cfg          AzureConfig
	speechConfig *speech.SpeechConfig
}

// NewAzure constructs the shared SpeechConfig used by every Transcribe
// call.
func NewAzure(cfg AzureConfig) (*Azure, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("model: failed to validate config: %w", err)
	}

	speechConfig, err := speech.NewSpeechConfigFromSubscription(cfg.SpeechKey, cfg.SpeechRegion)
	if err != nil {
		return nil, fmt.Errorf("model: failed to create speech config: %w", err)
	}
	if cfg.Language != "" {
		if err := speechConfig.SetSpeechRecognitionLanguage(cfg.Language); err != nil {
			return nil, fmt.Errorf("model: failed to set recognition language: %w", err)
		}
	}
	if err := speechConfig.SetProperty(common.SpeechLogFilename, filepath.Join(cfg.DataDir, "azure.log")); err != nil {
		return nil, fmt.Errorf("model: failed to set log property: %w", err)
	}

	return &Azure{cfg: cfg, speechConfig: speechConfig}, nil
}

func (a *Azure) Transcribe(ctx context.Context, samples []float32, sampleRate int, promptText string) (DecodedSegment, error) {
	if sampleRate != azureSampleRate {
		return DecodedSegment{}, fmt.Errorf("model: azure backend requires %dHz input, got %d", azureSampleRate, sampleRate)
	}
	if len(samples) == 0 {
		return DecodedSegment{}, fmt.Errorf("model: samples should not be empty")
	}
	if err := ctx.Err(); err != nil {
		return DecodedSegment{}, err
	}

	format, err := audio.GetDefaultAudioFormat()
	if err != nil {
		return DecodedSegment{}, fmt.Errorf("model: failed to get audio format: %w", err)
	}
	defer format.Close()

	stream, err := audio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		return DecodedSegment{}, fmt.Errorf("model: failed to create audio stream: %w", err)
	}
	defer stream.Close()

	audioConfig, err := audio.NewAudioConfigFromStreamInput(stream)
	if err != nil {
		return DecodedSegment{}, fmt.Errorf("model: failed to create audio config: %w", err)
	}
	defer audioConfig.Close()

	recognizer, err := speech.NewSpeechRecognizerFromConfig(a.speechConfig, audioConfig)
	if err != nil {
		return DecodedSegment{}, fmt.Errorf("model: failed to create speech recognizer: %w", err)
	}
	defer recognizer.Close()

	recognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		slog.Warn("azure recognition canceled", slog.String("details", event.ErrorDetails))
	})

	if err := stream.Write(pcm16LE(samples)); err != nil {
		return DecodedSegment{}, fmt.Errorf("model: failed to write audio stream: %w", err)
	}
	stream.CloseStream()

	outcomeCh := recognizer.RecognizeOnceAsync()
	select {
	case outcome := <-outcomeCh:
		if outcome.Error != nil {
			return DecodedSegment{}, fmt.Errorf("model: azure recognition failed: %w", outcome.Error)
		}
		defer outcome.Close()
		if outcome.Result.Reason == common.NoMatch {
			return DecodedSegment{}, nil
		}
		return DecodedSegment{Text: outcome.Result.Text}, nil
	case <-ctx.Done():
		return DecodedSegment{}, ctx.Err()
	}
}

// Close is a no-op: Azure's per-call resources are released after each
// Transcribe call, and the shared SpeechConfig has no explicit teardown.
func (a *Azure) Close() error {
	return nil
}

// pcm16LE converts float32 PCM in [-1, 1] to little-endian signed 16-bit
// PCM bytes, the wire format Azure's push stream expects.
func pcm16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(math.Max(-1, math.Min(1, float64(s))) * math.MaxInt16)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
