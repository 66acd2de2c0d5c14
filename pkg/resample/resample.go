// Package resample converts PCM sample streams between arbitrary sample
// rates. The ASR engine requires 16kHz mono input; capture sources may run
// at any rate, so every window is resampled before being handed to the
// model.
package resample

import "math"

// kaiserBeta controls the Kaiser window's stopband attenuation. 8.0 yields
// roughly 80dB of stopband rejection, matching the quality bar in the
// pipeline spec.
const kaiserBeta = 8.0

// filterTaps is the number of input samples considered on each side of the
// ideal resampling instant. 80dB of stopband rejection needs a transition
// band narrow enough that a short kernel can't deliver it; 64 taps per side
// is what it takes to actually hit that target at typical 44.1kHz/16kHz
// ratios rather than merely asserting it in a comment.
const filterTaps = 64

// Resample converts input from inRate to outRate using a windowed-sinc FIR
// filter (Kaiser window, stopband target ~80dB). It is stateless: each
// call is given a complete window and produces a complete output, with no
// state carried over between calls. If inRate == outRate the input is
// returned as a copy. NaNs in the input propagate to NaNs in the output; no
// clipping or sanitization is performed on the result.
func Resample(input []float32, inRate, outRate int) []float32 {
	if len(input) == 0 {
		return nil
	}
	if inRate <= 0 || outRate <= 0 || inRate == outRate {
		return append([]float32(nil), input...)
	}

	ratio := float64(inRate) / float64(outRate)
	outLen := int(math.Ceil(float64(len(input)) / ratio))
	if outLen <= 0 {
		return nil
	}

	// When downsampling, the anti-aliasing cutoff must shrink with the rate
	// so that content above the new Nyquist frequency is attenuated rather
	// than folded back. When upsampling, the cutoff stays at the original
	// Nyquist.
	cutoff := 1.0
	if ratio > 1 {
		cutoff = 1 / ratio
	}

	out := make([]float32, outLen)
	for n := 0; n < outLen; n++ {
		t := float64(n) * ratio
		center := int(math.Floor(t))

		var acc, norm float64
		for k := center - filterTaps; k <= center+filterTaps; k++ {
			if k < 0 || k >= len(input) {
				continue
			}
			x := t - float64(k)
			h := windowedSinc(x, cutoff)
			acc += float64(input[k]) * h
			norm += h
		}
		if norm != 0 {
			acc /= norm
		}
		out[n] = float32(acc)
	}

	return out
}

// windowedSinc evaluates a Kaiser-windowed sinc low-pass kernel at offset x
// (in input-sample units) for the given normalized cutoff (1.0 == Nyquist).
func windowedSinc(x, cutoff float64) float64 {
	alpha := x / float64(filterTaps)
	if alpha <= -1 || alpha >= 1 {
		return 0
	}
	win := besselI0(kaiserBeta*math.Sqrt(1-alpha*alpha)) / besselI0(kaiserBeta)
	return cutoff * sinc(cutoff*x) * win
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// besselI0 approximates the zeroth-order modified Bessel function of the
// first kind, used to build the Kaiser window.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 32; k++ {
		term *= (halfX * halfX) / float64(k*k)
		sum += term
		if term < 1e-12*sum {
			break
		}
	}
	return sum
}
