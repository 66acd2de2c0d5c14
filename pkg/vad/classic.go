package vad

import "math"

// ClassicDetector is a dependency-free approximation of the WebRTC-style
// GMM voice activity detector: it classifies speech using a combination of
// frame energy, tracked against a slowly adapting noise floor, and
// zero-crossing rate, scored against a fixed ideal rate. It supports the
// 10/20/30ms frame sizes the
// original GMM detector expects.
type ClassicDetector struct {
	noiseFloor   float64
	initialized  bool
	energyWeight float64
	zcrWeight    float64
}

// NewClassicDetector constructs a ClassicDetector with default weighting.
func NewClassicDetector() *ClassicDetector {
	return &ClassicDetector{
		energyWeight: 1.0,
		zcrWeight:    0.4,
	}
}

func (d *ClassicDetector) IsSpeech(frame []float32, _ int) (bool, error) {
	if len(frame) == 0 {
		return false, nil
	}

	energy := rmsEnergy(frame)
	zcr := zeroCrossingRate(frame)

	if !d.initialized {
		d.noiseFloor = energy
		d.initialized = true
	}

	// Speech frames score high on energy relative to the noise floor and
	// tend to have a moderate zero-crossing rate (unlike broadband noise,
	// which crosses zero far more often, or silence, which barely crosses
	// at all).
	energyScore := energy / (d.noiseFloor + 1e-6)
	zcrScore := 1 - math.Abs(zcr-classicIdealZCR)

	score := d.energyWeight*energyScore + d.zcrWeight*zcrScore
	isSpeech := score > classicSpeechThreshold

	if !isSpeech {
		// Slowly adapt the noise floor toward the observed energy of
		// non-speech frames.
		d.noiseFloor = d.noiseFloor*0.95 + energy*0.05
	}

	return isSpeech, nil
}

const (
	classicIdealZCR        = 0.15
	classicSpeechThreshold = 1.6
)

func (d *ClassicDetector) Reset() error {
	d.initialized = false
	d.noiseFloor = 0
	return nil
}

func (d *ClassicDetector) Close() error { return nil }

func rmsEnergy(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func zeroCrossingRate(frame []float32) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}
