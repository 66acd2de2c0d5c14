// Package capture supplies raw audio samples to the pipeline from a live
// microphone or a file, normalized to mono float32 PCM.
package capture

import "context"

// Source streams mono float32 PCM samples at SampleRate until ctx is
// canceled or the source is exhausted, at which point the returned
// channel is closed.
type Source interface {
	Start(ctx context.Context) (<-chan []float32, error)
	SampleRate() int
	Close() error
}
