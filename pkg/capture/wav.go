package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
)

const wavHeaderLen = 44

// WAVFile streams a 16-bit PCM mono WAV file's samples in fixed-size
// chunks, as fast as the consumer can read them.
type WAVFile struct {
	sampleRate int
	samples    []float32
	chunkSize  int
}

// NewWAVFile loads a 16-bit PCM mono WAV file from disk. chunkSize is the
// number of samples delivered per channel send; zero defaults to 480
// (30ms at 16kHz).
func NewWAVFile(path string, chunkSize int) (*WAVFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: failed to read wav file: %w", err)
	}

	sampleRate, samples, err := parseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("capture: failed to parse wav file: %w", err)
	}

	if chunkSize == 0 {
		chunkSize = 480
	}

	return &WAVFile{sampleRate: sampleRate, samples: samples, chunkSize: chunkSize}, nil
}

func (w *WAVFile) SampleRate() int {
	return w.sampleRate
}

// Start streams the loaded samples to the returned channel in chunkSize
// pieces, closing it once exhausted or ctx is canceled.
func (w *WAVFile) Start(ctx context.Context) (<-chan []float32, error) {
	out := make(chan []float32)

	go func() {
		defer close(out)
		for i := 0; i < len(w.samples); i += w.chunkSize {
			end := i + w.chunkSize
			if end > len(w.samples) {
				end = len(w.samples)
			}
			chunk := append([]float32(nil), w.samples[i:end]...)

			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (w *WAVFile) Close() error {
	return nil
}

// parseWAV extracts the sample rate and mono float32 samples from a
// 16-bit PCM WAV file. It assumes a canonical 44-byte header, matching
// files this package itself would produce.
func parseWAV(data []byte) (int, []float32, error) {
	if len(data) < wavHeaderLen {
		return 0, nil, fmt.Errorf("data too short to be a valid WAV file")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, nil, fmt.Errorf("missing RIFF/WAVE header")
	}

	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))

	pcm := data[wavHeaderLen:]
	if len(pcm)%2 != 0 {
		return 0, nil, fmt.Errorf("invalid PCM data length (not divisible by 2)")
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(s) / 32768.0
	}

	return sampleRate, samples, nil
}

// WriteWAV encodes mono float32 PCM samples as a 16-bit PCM WAV file,
// used by tests and CLI tooling that need to dump captured audio.
func WriteWAV(samples []float32, sampleRate int) []byte {
	const bitDepth = 16
	const channels = 1

	wav := make([]byte, wavHeaderLen+len(samples)*2)
	pcm := wav[wavHeaderLen:]

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:], uint32(len(wav)-8))
	copy(wav[8:12], "WAVE")
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:], 16)
	binary.LittleEndian.PutUint16(wav[20:], 1)
	binary.LittleEndian.PutUint16(wav[22:], channels)
	binary.LittleEndian.PutUint32(wav[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:], uint32(sampleRate*bitDepth*channels/8))
	binary.LittleEndian.PutUint16(wav[32:], bitDepth*channels/8)
	binary.LittleEndian.PutUint16(wav[34:], bitDepth)
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:], uint32(len(samples)*2))

	for i, s := range samples {
		v := s
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*32767.0)))
	}

	return wav
}
