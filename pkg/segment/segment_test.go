package segment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func frame(n int, nonZero bool) []float32 {
	out := make([]float32, n)
	if nonZero {
		for i := range out {
			out[i] = float32(math.Sin(float64(i)))
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		SampleRate:  16000,
		FrameMs:     30,
		EndMs:       90, // 3 silence frames
		MaxWindowMs: 300,
		KeepTailMs:  60,
		MinSpeechMs: 60, // 2 frames
	}
}

func pushFrames(t *testing.T, s *Segmenter, n int, speech bool) (last Segment, gotEmit bool) {
	t.Helper()
	frameSamples := s.cfg.FrameMs * s.cfg.SampleRate / 1000
	for i := 0; i < n; i++ {
		seg, ok := s.PushFrame(frame(frameSamples, speech), speech)
		if ok {
			last, gotEmit = seg, true
		}
	}
	return
}

func TestIdleDiscardsNonSpeech(t *testing.T) {
	s := New(testConfig())
	_, ok := pushFrames(t, s, 10, false)
	require.False(t, ok)
	require.Equal(t, Idle, s.State())
}

func TestSinglePhraseEmitsOnSilence(t *testing.T) {
	s := New(testConfig())

	// 150ms of speech (5 frames, above MinSpeechMs), then enough silence to
	// end the phrase.
	_, ok := pushFrames(t, s, 5, true)
	require.False(t, ok)
	require.Equal(t, Speaking, s.State())

	seg, ok := pushFrames(t, s, 3, false) // 3 * 30ms = 90ms >= EndMs
	require.True(t, ok)
	require.Greater(t, len(seg.Samples), 0)
	require.Equal(t, Idle, s.State())
}

func TestShortBlipBelowMinSpeechIsDiscarded(t *testing.T) {
	s := New(testConfig())

	// One speech frame (30ms) is below MinSpeechMs (60ms).
	pushFrames(t, s, 1, true)
	_, ok := pushFrames(t, s, 3, false)
	require.False(t, ok, "segment shorter than MinSpeechMs must not be emitted")
	require.Equal(t, Idle, s.State())
}

func TestTrailingSilenceResetsOnNewSpeech(t *testing.T) {
	s := New(testConfig())

	pushFrames(t, s, 5, true)
	_, ok := s.PushFrame(frame(480, false), false)
	require.False(t, ok)
	require.Equal(t, TrailingSilence, s.State())

	// Speech resumes before EndMs is reached; should return to Speaking
	// without emitting.
	_, ok = s.PushFrame(frame(480, true), true)
	require.False(t, ok)
	require.Equal(t, Speaking, s.State())
}

func TestForcedWindowRotationKeepsTail(t *testing.T) {
	cfg := testConfig()
	s := New(cfg)

	frameSamples := cfg.FrameMs * cfg.SampleRate / 1000
	maxWindowSamples := cfg.MaxWindowMs * cfg.SampleRate / 1000

	var lastSeg Segment
	var emitted bool
	for i := 0; i < maxWindowSamples/frameSamples+5; i++ {
		seg, ok := s.PushFrame(frame(frameSamples, true), true)
		if ok {
			lastSeg, emitted = seg, true
			break
		}
	}

	require.True(t, emitted, "window cap should force an emission")
	require.LessOrEqual(t, len(lastSeg.Samples), maxWindowSamples)

	keepTailSamples := cfg.KeepTailMs * cfg.SampleRate / 1000
	require.LessOrEqual(t, len(s.buffer), keepTailSamples)
	require.NotEqual(t, Idle, s.State())
}

func TestFlushEmitsPendingBuffer(t *testing.T) {
	s := New(testConfig())
	pushFrames(t, s, 5, true)

	seg, ok := s.Flush()
	require.True(t, ok)
	require.Greater(t, len(seg.Samples), 0)
	require.Equal(t, Idle, s.State())
}

func TestSegmenterBoundedEmissionCount(t *testing.T) {
	// Bounded property: for any VAD trace, at most
	// ceil(totalSpeechMs/MaxWindowMs) + 1 segments are emitted.
	cfg := testConfig()
	s := New(cfg)

	frameSamples := cfg.FrameMs * cfg.SampleRate / 1000
	totalFrames := 40
	var emissions int
	for i := 0; i < totalFrames; i++ {
		_, ok := s.PushFrame(frame(frameSamples, true), true)
		if ok {
			emissions++
		}
	}
	if _, ok := s.Flush(); ok {
		emissions++
	}

	totalSpeechMs := totalFrames * cfg.FrameMs
	maxAllowed := (totalSpeechMs+cfg.MaxWindowMs-1)/cfg.MaxWindowMs + 1
	require.LessOrEqual(t, emissions, maxAllowed)
}
