package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lowlat/streamcribe/pkg/transcribe"
)

// Metrics is the set of prometheus collectors a session reports against.
// Register it with a prometheus.Registerer once and reuse it across
// Driver.Start calls to get continuous counters across sessions.
type Metrics struct {
	TicksTotal          prometheus.Counter
	SamplesReadTotal    prometheus.Counter
	SegmentsEmitted     prometheus.Counter
	SamplesDroppedTotal prometheus.Counter
	BackpressureTotal   prometheus.Counter
	ModelLatency        prometheus.Histogram
	ModelErrorsTotal    prometheus.Counter
	VADFallbackTotal    prometheus.Counter
}

// NewMetrics constructs a Metrics set under the given namespace and
// registers it with reg. reg may be nil, in which case the collectors are
// created but never exposed.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transcriber_ticks_total",
			Help: "Number of transcriber loop ticks processed.",
		}),
		SamplesReadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transcriber_samples_read_total",
			Help: "Total audio samples read from the ring buffer.",
		}),
		SegmentsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transcriber_segments_emitted_total",
			Help: "Total audio segments handed to the speech model.",
		}),
		SamplesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transcriber_samples_dropped_total",
			Help: "Samples dropped because a tick fell behind the tail cap.",
		}),
		BackpressureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transcriber_output_backpressure_total",
			Help: "Times PublishConfirmed timed out waiting for a consumer.",
		}),
		ModelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "transcriber_model_latency_seconds",
			Help:    "Speech model inference latency per segment.",
			Buckets: prometheus.DefBuckets,
		}),
		ModelErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transcriber_model_errors_total",
			Help: "Segments skipped because the speech model returned an error.",
		}),
		VADFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transcriber_vad_fallback_total",
			Help: "Times the configured VAD backend errored and the loop fell back to energy-based VAD.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.TicksTotal, m.SamplesReadTotal, m.SegmentsEmitted, m.SamplesDroppedTotal,
			m.BackpressureTotal, m.ModelLatency, m.ModelErrorsTotal, m.VADFallbackTotal)
	}

	return m
}

// Hooks adapts this Metrics set into the transcribe.Hooks callbacks the
// loop invokes directly, keeping pkg/transcribe free of any prometheus
// dependency.
func (m *Metrics) Hooks() transcribe.Hooks {
	return transcribe.Hooks{
		OnTick: func(samplesRead int) {
			m.TicksTotal.Inc()
			m.SamplesReadTotal.Add(float64(samplesRead))
		},
		OnSegmentEmit: func(int) {
			m.SegmentsEmitted.Inc()
		},
		OnModelLatency: func(d time.Duration) {
			m.ModelLatency.Observe(d.Seconds())
		},
		OnBackpressure: func(error) {
			m.BackpressureTotal.Inc()
		},
		OnFrameDropped: func(n int) {
			m.SamplesDroppedTotal.Add(float64(n))
		},
		OnModelError: func(error) {
			m.ModelErrorsTotal.Inc()
		},
		OnVADFallback: func(error) {
			m.VADFallbackTotal.Inc()
		},
	}
}
