package radio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "icyradio"

type metrics struct {
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	playing         prometheus.GaugeFunc
	connectFailures prometheus.Counter
	titleChanges    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, playing func() float64) *metrics {
	f := promauto.With(reg)
	return &metrics{
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_started_total",
			Help:      "Playback sessions started.",
		}),
		sessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_ended_total",
			Help:      "Playback sessions ended, by reason.",
		}, []string{"reason"}),
		playing: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "playing",
			Help:      "1 while a session is alive.",
		}, playing),
		connectFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connect_failures_total",
			Help:      "Stream connections that failed to open.",
		}),
		titleChanges: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "title_changes_total",
			Help:      "Song title changes observed during playback.",
		}),
	}
}
