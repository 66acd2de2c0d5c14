// Package mocktest provides a scriptable model.SpeechModel for tests that
// need to exercise the transcriber loop and reconciler without cgo or a
// live cloud dependency.
package mocktest

import (
	"context"
	"fmt"
	"sync"

	"github.com/lowlat/streamcribe/pkg/model"
)

// Model replays a fixed script of responses, one per Transcribe call. It
// is safe for concurrent use.
type Model struct {
	mu       sync.Mutex
	script   []Response
	calls    []Call
	closed   bool
	closeErr error
}

// Response is one scripted Transcribe result.
type Response struct {
	Segment model.DecodedSegment
	Err     error
}

// Call records one observed Transcribe invocation for assertions.
type Call struct {
	NumSamples int
	SampleRate int
	PromptText string
}

// New constructs a Model that returns responses in order, one per call.
// A call beyond the end of the script returns an error.
func New(script ...Response) *Model {
	return &Model{script: script}
}

func (m *Model) Transcribe(ctx context.Context, samples []float32, sampleRate int, promptText string) (model.DecodedSegment, error) {
	if err := ctx.Err(); err != nil {
		return model.DecodedSegment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{NumSamples: len(samples), SampleRate: sampleRate, PromptText: promptText})

	idx := len(m.calls) - 1
	if idx >= len(m.script) {
		return model.DecodedSegment{}, fmt.Errorf("mocktest: no scripted response for call %d", idx)
	}
	return m.script[idx].Segment, m.script[idx].Err
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

// SetCloseErr makes Close return err, to exercise shutdown error paths.
func (m *Model) SetCloseErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
}

// Closed reports whether Close has been called.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns a copy of every observed Transcribe call, in order.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
