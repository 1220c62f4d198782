package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seedstat",
			Name:      "polls_total",
			Help:      "Count of poll cycles by result.",
		},
		[]string{"result"},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "seedstat",
			Name:      "poll_duration_seconds",
			Help:      "Duration of a full poll cycle.",
		},
	)

	Torrents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "seedstat",
			Name:      "torrents",
			Help:      "Number of torrents reported by the client in the last poll.",
		},
	)

	ClientRequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seedstat",
			Name:      "client_request_errors_total",
			Help:      "Failed requests to the torrent client.",
		},
		[]string{"client", "op"},
	)

	ClientRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seedstat",
			Name:      "client_request_duration_seconds",
			Help:      "Latency of requests to the torrent client.",
		},
		[]string{"client", "op"},
	)

	SinkWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seedstat",
			Name:      "sink_writes_total",
			Help:      "Metric sink writes by sink and result.",
		},
		[]string{"sink", "result"},
	)

	ActivePlugins = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "seedstat",
			Name:      "active_plugins",
			Help:      "Number of enabled plugins reported by the client.",
		},
	)
)

// Register registers the seedstat collectors into the default registry.
func Register() {
	prometheus.MustRegister(Polls, PollDuration, Torrents, ClientRequestErrors, ClientRequestLatency, SinkWrites, ActivePlugins)
}
