package transcribe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lowlat/streamcribe/pkg/control"
	"github.com/lowlat/streamcribe/pkg/model"
	"github.com/lowlat/streamcribe/pkg/model/mocktest"
	"github.com/lowlat/streamcribe/pkg/reconcile"
	"github.com/lowlat/streamcribe/pkg/ring"
	"github.com/lowlat/streamcribe/pkg/segment"
	"github.com/lowlat/streamcribe/pkg/vad"
)

// erroringDetector always reports err, to exercise the VAD fallback path.
type erroringDetector struct {
	err error
}

func (d *erroringDetector) IsSpeech([]float32, int) (bool, error) { return false, d.err }
func (d *erroringDetector) Reset() error                          { return nil }
func (d *erroringDetector) Close() error                          { return nil }

// fakePublisher records every published update for assertions.
type fakePublisher struct {
	mu        sync.Mutex
	working   []string
	confirmed []string
}

func (p *fakePublisher) PublishWorking(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.working = append(p.working, text)
}

func (p *fakePublisher) PublishConfirmed(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, text)
	return nil
}

func (p *fakePublisher) snapshot() (working, confirmed []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.working...), append([]string(nil), p.confirmed...)
}

func tone(n int, amplitude float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude
	}
	return out
}

func newTestLoop(sm model.SpeechModel, pub Publisher) (*Loop, *ring.Ring, *control.Flags) {
	r := ring.New(32000)
	flags := control.New()
	flags.SetRunning(true)
	det := vad.NewEnergyDetector(vad.DefaultEnergyThreshold)
	seg := segment.New(segment.Config{SampleRate: 16000, FrameMs: 30})
	rec := reconcile.New(reconcile.Config{})

	// TailMs is raised above the default 1s so a single tick can read every
	// sample the tests push at once (up to about 2s of audio).
	loop := New(Config{RingSampleRate: 16000, ModelSampleRate: 16000, FrameMs: 30, TailMs: 3000}, flags, r, det, seg, sm, rec, pub, Hooks{}, nil)
	return loop, r, flags
}

func TestTickEmitsSegmentAndPublishesReconciledText(t *testing.T) {
	sm := mocktest.New(mocktest.Response{Segment: model.DecodedSegment{Text: "hello there my good friend"}})
	pub := &fakePublisher{}
	loop, r, _ := newTestLoop(sm, pub)

	frameLen := 480 // 30ms @ 16kHz
	var audio []float32
	for i := 0; i < 10; i++ {
		audio = append(audio, tone(frameLen, 0.5)...)
	}
	for i := 0; i < 24; i++ { // 720ms silence, past the 700ms EndMs threshold
		audio = append(audio, tone(frameLen, 0)...)
	}
	r.Push(audio)

	require.NoError(t, loop.tick(context.Background()))

	calls := sm.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, 16000, calls[0].SampleRate)

	working, confirmed := pub.snapshot()
	require.NotEmpty(t, working)
	require.NotEmpty(t, confirmed)
	require.Equal(t, "hello there", confirmed[0])
	require.Equal(t, "my good friend", working[len(working)-1])
}

func TestTickWithNoNewSamplesIsNoOp(t *testing.T) {
	sm := mocktest.New()
	pub := &fakePublisher{}
	loop, _, _ := newTestLoop(sm, pub)

	require.NoError(t, loop.tick(context.Background()))
	require.Empty(t, sm.Calls())
}

func TestTickSkipsModelInvocationWhilePaused(t *testing.T) {
	sm := mocktest.New(mocktest.Response{Segment: model.DecodedSegment{Text: "should not be invoked"}})
	pub := &fakePublisher{}
	loop, r, flags := newTestLoop(sm, pub)
	flags.SetPaused(true)

	frameLen := 480
	var audio []float32
	for i := 0; i < 10; i++ {
		audio = append(audio, tone(frameLen, 0.5)...)
	}
	for i := 0; i < 24; i++ {
		audio = append(audio, tone(frameLen, 0)...)
	}
	r.Push(audio)

	require.NoError(t, loop.tick(context.Background()))
	require.Empty(t, sm.Calls())
}

func TestRunFlushesPendingWorkingOnContextCancel(t *testing.T) {
	sm := mocktest.New(mocktest.Response{Segment: model.DecodedSegment{Text: "hello there friend"}})
	pub := &fakePublisher{}
	loop, r, _ := newTestLoop(sm, pub)
	loop.cfg.TickInterval = 10 * time.Millisecond

	frameLen := 480
	var audio []float32
	for i := 0; i < 10; i++ {
		audio = append(audio, tone(frameLen, 0.5)...)
	}
	r.Push(audio) // speech only, no trailing silence: segment stays buffered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx)
	require.NoError(t, err)

	_, confirmed := pub.snapshot()
	require.NotEmpty(t, confirmed)
}

func TestTickSkipsSegmentOnModelErrorAndContinuesLoop(t *testing.T) {
	sm := mocktest.New(
		mocktest.Response{Err: errors.New("model backend unavailable")},
		mocktest.Response{Segment: model.DecodedSegment{Text: "hello there my good friend"}},
	)
	pub := &fakePublisher{}
	loop, r, _ := newTestLoop(sm, pub)

	frameLen := 480
	var audio []float32
	phrase := func() {
		for i := 0; i < 10; i++ {
			audio = append(audio, tone(frameLen, 0.5)...)
		}
		for i := 0; i < 24; i++ {
			audio = append(audio, tone(frameLen, 0)...)
		}
	}
	phrase() // errors, must not abort the tick
	phrase() // succeeds normally afterward
	r.Push(audio)

	require.NoError(t, loop.tick(context.Background()))

	calls := sm.Calls()
	require.Len(t, calls, 2, "the loop must keep invoking the model on later segments after one errors")

	working, confirmed := pub.snapshot()
	require.Len(t, confirmed, 1, "only the successful segment's text should reach the transcript")
	require.Equal(t, "hello there", confirmed[0])
	require.Equal(t, "my good friend", working[len(working)-1])
}

func TestTickFallsBackToEnergyVADOnClassifierError(t *testing.T) {
	sm := mocktest.New(mocktest.Response{Segment: model.DecodedSegment{Text: "hello there my good friend"}})
	pub := &fakePublisher{}
	r := ring.New(32000)
	flags := control.New()
	flags.SetRunning(true)
	seg := segment.New(segment.Config{SampleRate: 16000, FrameMs: 30})
	rec := reconcile.New(reconcile.Config{})
	det := &erroringDetector{err: errors.New("neural backend crashed")}

	loop := New(Config{RingSampleRate: 16000, ModelSampleRate: 16000, FrameMs: 30, TailMs: 3000}, flags, r, det, seg, sm, rec, pub, Hooks{}, nil)

	frameLen := 480
	var audio []float32
	for i := 0; i < 10; i++ {
		audio = append(audio, tone(frameLen, 0.5)...)
	}
	for i := 0; i < 24; i++ {
		audio = append(audio, tone(frameLen, 0)...)
	}
	r.Push(audio)

	require.NoError(t, loop.tick(context.Background()))
	require.True(t, loop.vadFellBack)

	calls := sm.Calls()
	require.Len(t, calls, 1, "the energy-based fallback should still classify speech and let the segment through")
}

func TestTickDropsOldestSamplesWhenFallingBehindTailCap(t *testing.T) {
	sm := mocktest.New()
	pub := &fakePublisher{}
	loop, r, _ := newTestLoop(sm, pub)
	loop.cfg.TailMs = 100 // cap reads to 1600 samples @16kHz

	r.Push(tone(32000, 0.01)) // 2s of low-level audio, well under VAD threshold

	var dropped int
	loop.hooks.OnFrameDropped = func(n int) { dropped = n }

	require.NoError(t, loop.tick(context.Background()))
	require.Positive(t, dropped)
}
