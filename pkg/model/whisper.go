package model

// #cgo LDFLAGS: -l:libwhisper.a -lm -lstdc++
// #include <whisper.h>
// #include <stdlib.h>
import "C"

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"
)

// WhisperCPPConfig configures a local whisper.cpp-backed model.
type WhisperCPPConfig struct {
	// ModelFile is the path to a GGML model file.
	ModelFile string
	// NumThreads bounds how many CPU threads whisper_full uses. Zero
	// means runtime.NumCPU().
	NumThreads int
	// Language is a whisper language code ("en", "auto", ...). Empty
	// means "en".
	Language string
}

func (c WhisperCPPConfig) IsValid() error {
	if c.ModelFile == "" {
		return fmt.Errorf("model: invalid ModelFile: should not be empty")
	}
	if _, err := os.Stat(c.ModelFile); err != nil {
		return fmt.Errorf("model: invalid ModelFile: failed to stat model file: %w", err)
	}
	if numCPU := runtime.NumCPU(); c.NumThreads < 0 || c.NumThreads > numCPU {
		return fmt.Errorf("model: invalid NumThreads: should be in the range [0, %d]", numCPU)
	}
	return nil
}

// WhisperCPP wraps a whisper.cpp context. It is safe for concurrent use:
// whisper_full is not reentrant on a single context, so calls are
// serialized behind a mutex, matching the pipeline's single in-flight
// transcription at a time per Driver.
type WhisperCPP struct {
	cfg WhisperCPPConfig
	mu  sync.Mutex
	ctx *C.struct_whisper_context
}

// NewWhisperCPP loads a GGML model file into a whisper.cpp context.
func NewWhisperCPP(cfg WhisperCPPConfig) (*WhisperCPP, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("model: failed to validate config: %w", err)
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = runtime.NumCPU()
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	path := C.CString(cfg.ModelFile)
	defer C.free(unsafe.Pointer(path))

	ctx := C.whisper_init_from_file(path)
	if ctx == nil {
		return nil, fmt.Errorf("model: failed to load whisper model file")
	}

	return &WhisperCPP{cfg: cfg, ctx: ctx}, nil
}

// Transcribe runs one greedy whisper_full pass over samples, which must
// already be mono float32 PCM at 16kHz.
func (w *WhisperCPP) Transcribe(ctx context.Context, samples []float32, sampleRate int, promptText string) (DecodedSegment, error) {
	if sampleRate != 16000 {
		return DecodedSegment{}, fmt.Errorf("model: whisper.cpp requires 16kHz input, got %d", sampleRate)
	}
	if len(samples) == 0 {
		return DecodedSegment{}, fmt.Errorf("model: samples should not be empty")
	}
	if err := ctx.Err(); err != nil {
		return DecodedSegment{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx == nil {
		return DecodedSegment{}, fmt.Errorf("model: whisper context is closed")
	}

	lang := C.CString(w.cfg.Language)
	defer C.free(unsafe.Pointer(lang))

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.no_context = C.bool(false)
	params.n_threads = C.int(w.cfg.NumThreads)
	params.language = lang
	params.split_on_word = C.bool(true)

	var prompt *C.char
	if promptText != "" {
		prompt = C.CString(promptText)
		defer C.free(unsafe.Pointer(prompt))
		params.initial_prompt = prompt
	}

	ret := C.whisper_full(w.ctx, params, (*C.float)(&samples[0]), C.int(len(samples)))
	if ret != 0 {
		return DecodedSegment{}, fmt.Errorf("model: whisper_full failed with code %d", ret)
	}

	n := int(C.whisper_full_n_segments(w.ctx))
	var text string
	for i := 0; i < n; i++ {
		if i > 0 {
			text += " "
		}
		text += C.GoString(C.whisper_full_get_segment_text(w.ctx, C.int(i)))
	}

	return DecodedSegment{Text: text}, nil
}

// Close frees the underlying whisper.cpp context.
func (w *WhisperCPP) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx == nil {
		return fmt.Errorf("model: whisper context already closed")
	}
	C.whisper_free(w.ctx)
	w.ctx = nil
	return nil
}
