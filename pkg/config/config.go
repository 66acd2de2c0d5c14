// Package config defines the streamcribe pipeline's configuration
// surface: defaults, validation, and environment-variable marshaling, in
// the style of a twelve-factor CLI tool.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// ModelBackend selects which SpeechModel implementation the pipeline
// constructs.
type ModelBackend string

const (
	ModelBackendWhisperCPP ModelBackend = "whisper.cpp"
	ModelBackendAzure      ModelBackend = "azure"
	ModelBackendMock       ModelBackend = "mock"
)

func (b ModelBackend) IsValid() bool {
	switch b {
	case ModelBackendWhisperCPP, ModelBackendAzure, ModelBackendMock:
		return true
	default:
		return false
	}
}

// VADBackend selects which voice-activity detector the segmenter uses.
type VADBackend string

const (
	VADBackendEnergy  VADBackend = "energy"
	VADBackendClassic VADBackend = "classic"
	VADBackendNeural  VADBackend = "neural"
)

func (b VADBackend) IsValid() bool {
	switch b {
	case VADBackendEnergy, VADBackendClassic, VADBackendNeural:
		return true
	default:
		return false
	}
}

// CaptureSource selects where raw audio comes from.
type CaptureSource string

const (
	CaptureSourceMic CaptureSource = "mic"
	CaptureSourceWAV CaptureSource = "wav"
)

func (s CaptureSource) IsValid() bool {
	switch s {
	case CaptureSourceMic, CaptureSourceWAV:
		return true
	default:
		return false
	}
}

const (
	ModelBackendDefault      = ModelBackendWhisperCPP
	VADBackendDefault        = VADBackendEnergy
	CaptureSourceDefault     = CaptureSourceMic
	LanguageDefault          = "en"
	RingSecondsDefault       = 30
	TailMsDefault            = 1000
	TickIntervalMsDefault    = 100
	SegmentEndMsDefault      = 700
	SegmentMaxWindowMsDefault = 30000
	SegmentKeepTailMsDefault = 500
	SegmentMinSpeechMsDefault = 200
	ConfirmedBufferDefault   = 16
	ConfirmedTimeoutMsDefault = 2000
	JoinTimeoutMsDefault     = 2000
	NumThreadsDefault        = 2
)

// Config is the full set of options the CLI and library embedders can
// tune to build a pipeline.Driver.
type Config struct {
	// model
	ModelBackend     ModelBackend
	ModelFile        string // whisper.cpp model path
	Language         string
	NumThreads       int
	AzureSpeechKey   string
	AzureSpeechRegion string
	DataDir          string

	// capture
	CaptureSource CaptureSource
	WAVPath       string
	SampleRate    int

	// VAD / segmentation
	VADBackend       VADBackend
	VADThreshold     float32
	VADModelPath     string
	SegmentEndMs        int
	SegmentMaxWindowMs  int
	SegmentKeepTailMs   int
	SegmentMinSpeechMs  int

	// ring / loop cadence
	RingSeconds    int
	TailMs         int
	TickIntervalMs int

	// reconciler
	OverlapTailChars int
	MinOverlapChars  int
	WorkingTailWords int
	PromptTokenCap   int

	// outputs / lifecycle
	ConfirmedBufferSize int
	ConfirmedTimeoutMs  int
	JoinTimeoutMs       int

	// observability
	LogLevel string
	LogFile  string
}

// IsValid reports whether cfg can be used to start a pipeline.
func (cfg Config) IsValid() error {
	if !cfg.ModelBackend.IsValid() {
		return fmt.Errorf("config: ModelBackend value is not valid")
	}
	if cfg.ModelBackend == ModelBackendWhisperCPP && cfg.ModelFile == "" {
		return fmt.Errorf("config: ModelFile cannot be empty for whisper.cpp backend")
	}
	if cfg.ModelBackend == ModelBackendAzure {
		if cfg.AzureSpeechKey == "" || cfg.AzureSpeechRegion == "" {
			return fmt.Errorf("config: AzureSpeechKey and AzureSpeechRegion cannot be empty for azure backend")
		}
	}

	if !cfg.CaptureSource.IsValid() {
		return fmt.Errorf("config: CaptureSource value is not valid")
	}
	if cfg.CaptureSource == CaptureSourceWAV && cfg.WAVPath == "" {
		return fmt.Errorf("config: WAVPath cannot be empty when CaptureSource is wav")
	}

	if !cfg.VADBackend.IsValid() {
		return fmt.Errorf("config: VADBackend value is not valid")
	}
	if cfg.VADBackend == VADBackendNeural && cfg.VADModelPath == "" {
		return fmt.Errorf("config: VADModelPath cannot be empty for neural VAD backend")
	}

	numCPU := runtime.NumCPU()
	if cfg.NumThreads < 1 || cfg.NumThreads > numCPU {
		return fmt.Errorf("config: NumThreads should be in the range [1, %d]", numCPU)
	}

	if cfg.RingSeconds < 1 {
		return fmt.Errorf("config: RingSeconds must be positive")
	}
	if cfg.TailMs < 1 {
		return fmt.Errorf("config: TailMs must be positive")
	}
	if cfg.TickIntervalMs < 1 {
		return fmt.Errorf("config: TickIntervalMs must be positive")
	}
	if cfg.ConfirmedTimeoutMs < 1 {
		return fmt.Errorf("config: ConfirmedTimeoutMs must be positive")
	}
	if cfg.JoinTimeoutMs < 1 {
		return fmt.Errorf("config: JoinTimeoutMs must be positive")
	}

	return nil
}

// SetDefaults fills zero-valued fields with the package's defaults.
func (cfg *Config) SetDefaults() {
	if cfg.ModelBackend == "" {
		cfg.ModelBackend = ModelBackendDefault
	}
	if cfg.Language == "" {
		cfg.Language = LanguageDefault
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = min(NumThreadsDefault, max(1, runtime.NumCPU()/2))
	}
	if cfg.CaptureSource == "" {
		cfg.CaptureSource = CaptureSourceDefault
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.VADBackend == "" {
		cfg.VADBackend = VADBackendDefault
	}
	if cfg.SegmentEndMs == 0 {
		cfg.SegmentEndMs = SegmentEndMsDefault
	}
	if cfg.SegmentMaxWindowMs == 0 {
		cfg.SegmentMaxWindowMs = SegmentMaxWindowMsDefault
	}
	if cfg.SegmentKeepTailMs == 0 {
		cfg.SegmentKeepTailMs = SegmentKeepTailMsDefault
	}
	if cfg.SegmentMinSpeechMs == 0 {
		cfg.SegmentMinSpeechMs = SegmentMinSpeechMsDefault
	}
	if cfg.RingSeconds == 0 {
		cfg.RingSeconds = RingSecondsDefault
	}
	if cfg.TailMs == 0 {
		cfg.TailMs = TailMsDefault
	}
	if cfg.TickIntervalMs == 0 {
		cfg.TickIntervalMs = TickIntervalMsDefault
	}
	if cfg.ConfirmedBufferSize == 0 {
		cfg.ConfirmedBufferSize = ConfirmedBufferDefault
	}
	if cfg.ConfirmedTimeoutMs == 0 {
		cfg.ConfirmedTimeoutMs = ConfirmedTimeoutMsDefault
	}
	if cfg.JoinTimeoutMs == 0 {
		cfg.JoinTimeoutMs = JoinTimeoutMsDefault
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// TickInterval returns TickIntervalMs as a time.Duration.
func (cfg Config) TickInterval() time.Duration {
	return time.Duration(cfg.TickIntervalMs) * time.Millisecond
}

// ConfirmedTimeout returns ConfirmedTimeoutMs as a time.Duration.
func (cfg Config) ConfirmedTimeout() time.Duration {
	return time.Duration(cfg.ConfirmedTimeoutMs) * time.Millisecond
}

// JoinTimeout returns JoinTimeoutMs as a time.Duration.
func (cfg Config) JoinTimeout() time.Duration {
	return time.Duration(cfg.JoinTimeoutMs) * time.Millisecond
}

// ToEnv renders cfg as a fixed-order (not sorted) list of NAME=value
// strings, suitable for passing to a subprocess environment.
func (cfg Config) ToEnv() []string {
	return []string{
		fmt.Sprintf("MODEL_BACKEND=%s", cfg.ModelBackend),
		fmt.Sprintf("MODEL_FILE=%s", cfg.ModelFile),
		fmt.Sprintf("LANGUAGE=%s", cfg.Language),
		fmt.Sprintf("NUM_THREADS=%d", cfg.NumThreads),
		fmt.Sprintf("AZURE_SPEECH_KEY=%s", cfg.AzureSpeechKey),
		fmt.Sprintf("AZURE_SPEECH_REGION=%s", cfg.AzureSpeechRegion),
		fmt.Sprintf("DATA_DIR=%s", cfg.DataDir),
		fmt.Sprintf("CAPTURE_SOURCE=%s", cfg.CaptureSource),
		fmt.Sprintf("WAV_PATH=%s", cfg.WAVPath),
		fmt.Sprintf("SAMPLE_RATE=%d", cfg.SampleRate),
		fmt.Sprintf("VAD_BACKEND=%s", cfg.VADBackend),
		fmt.Sprintf("VAD_THRESHOLD=%f", cfg.VADThreshold),
		fmt.Sprintf("VAD_MODEL_PATH=%s", cfg.VADModelPath),
		fmt.Sprintf("SEGMENT_END_MS=%d", cfg.SegmentEndMs),
		fmt.Sprintf("SEGMENT_MAX_WINDOW_MS=%d", cfg.SegmentMaxWindowMs),
		fmt.Sprintf("SEGMENT_KEEP_TAIL_MS=%d", cfg.SegmentKeepTailMs),
		fmt.Sprintf("SEGMENT_MIN_SPEECH_MS=%d", cfg.SegmentMinSpeechMs),
		fmt.Sprintf("RING_SECONDS=%d", cfg.RingSeconds),
		fmt.Sprintf("TAIL_MS=%d", cfg.TailMs),
		fmt.Sprintf("TICK_INTERVAL_MS=%d", cfg.TickIntervalMs),
		fmt.Sprintf("CONFIRMED_BUFFER_SIZE=%d", cfg.ConfirmedBufferSize),
		fmt.Sprintf("CONFIRMED_TIMEOUT_MS=%d", cfg.ConfirmedTimeoutMs),
		fmt.Sprintf("JOIN_TIMEOUT_MS=%d", cfg.JoinTimeoutMs),
		fmt.Sprintf("LOG_LEVEL=%s", cfg.LogLevel),
		fmt.Sprintf("LOG_FILE=%s", cfg.LogFile),
	}
}

// ToMap renders cfg as a JSON-friendly map, for embedding in structured
// log lines or a status endpoint.
func (cfg Config) ToMap() map[string]any {
	return map[string]any{
		"model_backend":        cfg.ModelBackend,
		"model_file":           cfg.ModelFile,
		"language":             cfg.Language,
		"num_threads":          cfg.NumThreads,
		"capture_source":       cfg.CaptureSource,
		"wav_path":             cfg.WAVPath,
		"sample_rate":          cfg.SampleRate,
		"vad_backend":          cfg.VADBackend,
		"vad_threshold":        cfg.VADThreshold,
		"segment_end_ms":       cfg.SegmentEndMs,
		"segment_max_window_ms": cfg.SegmentMaxWindowMs,
		"ring_seconds":         cfg.RingSeconds,
		"tail_ms":              cfg.TailMs,
		"tick_interval_ms":     cfg.TickIntervalMs,
		"confirmed_buffer_size": cfg.ConfirmedBufferSize,
		"confirmed_timeout_ms": cfg.ConfirmedTimeoutMs,
		"join_timeout_ms":      cfg.JoinTimeoutMs,
		"log_level":            cfg.LogLevel,
	}
}

// FromMap populates cfg's fields from a map produced by ToMap (or an
// equivalent JSON-decoded payload, where integers arrive as float64).
func (cfg *Config) FromMap(m map[string]any) *Config {
	if v, ok := m["model_backend"].(string); ok {
		cfg.ModelBackend = ModelBackend(v)
	}
	if v, ok := m["model_file"].(string); ok {
		cfg.ModelFile = v
	}
	if v, ok := m["language"].(string); ok {
		cfg.Language = v
	}
	cfg.NumThreads = intFromAny(m["num_threads"], cfg.NumThreads)
	if v, ok := m["capture_source"].(string); ok {
		cfg.CaptureSource = CaptureSource(v)
	}
	if v, ok := m["wav_path"].(string); ok {
		cfg.WAVPath = v
	}
	cfg.SampleRate = intFromAny(m["sample_rate"], cfg.SampleRate)
	if v, ok := m["vad_backend"].(string); ok {
		cfg.VADBackend = VADBackend(v)
	}
	cfg.SegmentEndMs = intFromAny(m["segment_end_ms"], cfg.SegmentEndMs)
	cfg.SegmentMaxWindowMs = intFromAny(m["segment_max_window_ms"], cfg.SegmentMaxWindowMs)
	cfg.RingSeconds = intFromAny(m["ring_seconds"], cfg.RingSeconds)
	cfg.TailMs = intFromAny(m["tail_ms"], cfg.TailMs)
	cfg.TickIntervalMs = intFromAny(m["tick_interval_ms"], cfg.TickIntervalMs)
	cfg.ConfirmedBufferSize = intFromAny(m["confirmed_buffer_size"], cfg.ConfirmedBufferSize)
	cfg.ConfirmedTimeoutMs = intFromAny(m["confirmed_timeout_ms"], cfg.ConfirmedTimeoutMs)
	cfg.JoinTimeoutMs = intFromAny(m["join_timeout_ms"], cfg.JoinTimeoutMs)
	if v, ok := m["log_level"].(string); ok {
		cfg.LogLevel = v
	}

	return cfg
}

// intFromAny handles both int (already-typed Go values) and float64
// (decoded from JSON), matching the teacher's ToMap/FromMap round-trip.
func intFromAny(v any, fallback int) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return fallback
	}
}

// FromEnv builds a Config by reading the same variable names ToEnv
// writes.
func FromEnv() (Config, error) {
	var cfg Config
	cfg.ModelBackend = ModelBackend(os.Getenv("MODEL_BACKEND"))
	cfg.ModelFile = os.Getenv("MODEL_FILE")
	cfg.Language = os.Getenv("LANGUAGE")
	cfg.NumThreads, _ = strconv.Atoi(os.Getenv("NUM_THREADS"))
	cfg.AzureSpeechKey = os.Getenv("AZURE_SPEECH_KEY")
	cfg.AzureSpeechRegion = os.Getenv("AZURE_SPEECH_REGION")
	cfg.DataDir = os.Getenv("DATA_DIR")
	cfg.CaptureSource = CaptureSource(os.Getenv("CAPTURE_SOURCE"))
	cfg.WAVPath = os.Getenv("WAV_PATH")
	cfg.SampleRate, _ = strconv.Atoi(os.Getenv("SAMPLE_RATE"))
	cfg.VADBackend = VADBackend(os.Getenv("VAD_BACKEND"))
	if v, err := strconv.ParseFloat(os.Getenv("VAD_THRESHOLD"), 32); err == nil {
		cfg.VADThreshold = float32(v)
	}
	cfg.VADModelPath = os.Getenv("VAD_MODEL_PATH")
	cfg.SegmentEndMs, _ = strconv.Atoi(os.Getenv("SEGMENT_END_MS"))
	cfg.SegmentMaxWindowMs, _ = strconv.Atoi(os.Getenv("SEGMENT_MAX_WINDOW_MS"))
	cfg.SegmentKeepTailMs, _ = strconv.Atoi(os.Getenv("SEGMENT_KEEP_TAIL_MS"))
	cfg.SegmentMinSpeechMs, _ = strconv.Atoi(os.Getenv("SEGMENT_MIN_SPEECH_MS"))
	cfg.RingSeconds, _ = strconv.Atoi(os.Getenv("RING_SECONDS"))
	cfg.TailMs, _ = strconv.Atoi(os.Getenv("TAIL_MS"))
	cfg.TickIntervalMs, _ = strconv.Atoi(os.Getenv("TICK_INTERVAL_MS"))
	cfg.ConfirmedBufferSize, _ = strconv.Atoi(os.Getenv("CONFIRMED_BUFFER_SIZE"))
	cfg.ConfirmedTimeoutMs, _ = strconv.Atoi(os.Getenv("CONFIRMED_TIMEOUT_MS"))
	cfg.JoinTimeoutMs, _ = strconv.Atoi(os.Getenv("JOIN_TIMEOUT_MS"))
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

