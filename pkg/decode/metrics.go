package decode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "icyradio"

// Metrics counts pipeline throughput across all streams.
type Metrics struct {
	bytesFed     prometheus.Counter
	framesPlayed prometheus.Counter
	decoderExits *prometheus.CounterVec
}

// NewMetrics creates pipeline metrics registered with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bytesFed: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "decode",
			Name:      "input_bytes_total",
			Help:      "Compressed bytes written to the decoder.",
		}),
		framesPlayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "decode",
			Name:      "frames_played_total",
			Help:      "PCM frames reported played by the sink.",
		}),
		decoderExits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "decode",
			Name:      "decoder_exits_total",
			Help:      "Decoder process exits by reason.",
		}, []string{"reason"}),
	}
}
