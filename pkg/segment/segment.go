// Package segment implements the VAD-driven segmentation state machine
// that accumulates raw audio and emits bounded AudioSegments at phrase
// boundaries or when a window grows too large.
package segment

// State is one of the segmenter's three states.
type State int

const (
	Idle State = iota
	Speaking
	TrailingSilence
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	case TrailingSilence:
		return "trailing_silence"
	default:
		return "unknown"
	}
}

// Segment is an owned, contiguous window of samples ready for ASR.
type Segment struct {
	Samples    []float32
	SampleRate int
}

// Config tunes the segmentation thresholds. All durations are in
// milliseconds of audio at the segmenter's configured sample rate.
type Config struct {
	SampleRate int
	FrameMs    int

	// EndMs is the run of silence, after speech, that confirms a phrase
	// has ended.
	EndMs int
	// MaxWindowMs caps how long a single segment may grow before it is
	// force-emitted.
	MaxWindowMs int
	// KeepTailMs is retained as the new buffer prefix after a forced
	// (non-phrase-end) emission, so the model sees cross-split context.
	KeepTailMs int
	// MinSpeechMs is the minimum duration of speech frames a buffered block
	// must contain to be emitted; below this a completed block is silently
	// discarded, however much trailing silence it holds.
	MinSpeechMs int
}

// DefaultConfig returns the spec's default thresholds for a 16kHz stream
// with 30ms frames.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		FrameMs:     30,
		EndMs:       700,
		MaxWindowMs: 30000,
		KeepTailMs:  500,
		MinSpeechMs: 200,
	}
}

// Segmenter accumulates samples frame by frame and emits Segments at
// phrase boundaries or window caps. It is not safe for concurrent use by
// more than one goroutine.
type Segmenter struct {
	cfg Config

	buffer       []float32
	silenceRunMs int
	speechRunMs  int
	state        State
}

// New constructs a Segmenter. Zero-valued fields in cfg fall back to
// DefaultConfig's values.
func New(cfg Config) *Segmenter {
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FrameMs == 0 {
		cfg.FrameMs = def.FrameMs
	}
	if cfg.EndMs == 0 {
		cfg.EndMs = def.EndMs
	}
	if cfg.MaxWindowMs == 0 {
		cfg.MaxWindowMs = def.MaxWindowMs
	}
	if cfg.KeepTailMs == 0 {
		cfg.KeepTailMs = def.KeepTailMs
	}
	if cfg.MinSpeechMs == 0 {
		cfg.MinSpeechMs = def.MinSpeechMs
	}

	return &Segmenter{cfg: cfg, state: Idle}
}

// State returns the segmenter's current state.
func (s *Segmenter) State() State {
	return s.state
}

func (s *Segmenter) samplesPerMs() int {
	return s.cfg.SampleRate / 1000
}

func (s *Segmenter) maxWindowSamples() int {
	return s.cfg.MaxWindowMs * s.samplesPerMs()
}

func (s *Segmenter) keepTailSamples() int {
	return s.cfg.KeepTailMs * s.samplesPerMs()
}

func (s *Segmenter) minSpeechSamples() int {
	return s.cfg.MinSpeechMs * s.samplesPerMs()
}

// PushFrame advances the state machine with one VAD-classified frame.
// When a segment is ready to emit (phrase end or forced window rotation)
// it is returned with ok == true.
func (s *Segmenter) PushFrame(frame []float32, isSpeech bool) (seg Segment, ok bool) {
	frameMs := s.cfg.FrameMs

	switch s.state {
	case Idle:
		if isSpeech {
			s.state = Speaking
			s.buffer = append(s.buffer[:0], frame...)
			s.speechRunMs = frameMs
			s.silenceRunMs = 0
		}
		// Idle + silence: discard the frame, stay Idle.

	case Speaking:
		s.buffer = append(s.buffer, frame...)
		if isSpeech {
			s.speechRunMs += frameMs
		} else {
			s.state = TrailingSilence
			s.silenceRunMs = frameMs
		}

	case TrailingSilence:
		s.buffer = append(s.buffer, frame...)
		if isSpeech {
			s.state = Speaking
			s.silenceRunMs = 0
			s.speechRunMs += frameMs
		} else {
			s.silenceRunMs += frameMs
			if s.silenceRunMs >= s.cfg.EndMs {
				seg, ok = s.emit()
				s.reset()
				return seg, ok
			}
		}
	}

	if len(s.buffer) >= s.maxWindowSamples() {
		seg, ok = s.emit()
		s.rotate()
		return seg, ok
	}

	return Segment{}, false
}

// Flush force-emits any buffered audio, e.g. on pipeline shutdown. Buffers
// holding less than MinSpeechMs of speech are discarded, matching normal
// emission rules.
func (s *Segmenter) Flush() (seg Segment, ok bool) {
	seg, ok = s.emit()
	s.reset()
	return seg, ok
}

func (s *Segmenter) emit() (Segment, bool) {
	if s.speechRunMs < s.cfg.MinSpeechMs {
		return Segment{}, false
	}
	samples := append([]float32(nil), s.buffer...)
	return Segment{Samples: samples, SampleRate: s.cfg.SampleRate}, true
}

func (s *Segmenter) reset() {
	s.buffer = s.buffer[:0]
	s.speechRunMs = 0
	s.silenceRunMs = 0
	s.state = Idle
}

// rotate keeps the last KeepTailMs of the buffer as the new prefix after a
// forced window-size emission, so the model retains cross-split context.
func (s *Segmenter) rotate() {
	keep := s.keepTailSamples()
	if keep > len(s.buffer) {
		keep = len(s.buffer)
	}
	tail := append([]float32(nil), s.buffer[len(s.buffer)-keep:]...)
	s.buffer = tail
	// Remain in whatever state we were in (Speaking or TrailingSilence);
	// run counters are approximated by the retained tail's duration.
	if s.state == Idle {
		s.state = Speaking
	}
	s.speechRunMs = keep / s.samplesPerMs()
	s.silenceRunMs = 0
}
