// Package model defines the SpeechModel boundary between the pipeline and
// a concrete ASR backend (a local whisper.cpp context, a cloud API, or a
// scripted mock for tests).
package model

import "context"

// DecodedSegment is what a SpeechModel returns for one bounded audio
// window handed to it by the transcriber loop.
type DecodedSegment struct {
	Text       string
	Confidence float32
}

// SpeechModel transcribes one complete, bounded audio window at a time.
// promptText carries the reconciler's confirmed-word prompt context back
// into the model, when the backend supports conditioning on it; backends
// that don't are free to ignore it.
type SpeechModel interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, promptText string) (DecodedSegment, error)
	Close() error
}
