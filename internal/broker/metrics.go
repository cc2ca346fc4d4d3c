package broker

import "github.com/prometheus/client_golang/prometheus"

var (
	publishesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wirebus_publishes_total",
		Help: "Total number of messages accepted by publish",
	})

	enqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wirebus_frames_enqueued_total",
		Help: "Total number of frames enqueued onto subscriber queues",
	})

	droppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wirebus_frames_dropped_total",
		Help: "Total frames dropped before delivery, by reason",
	}, []string{"reason"})

	slowConsumersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wirebus_slow_consumers_disconnected_total",
		Help: "Total subscribers disconnected under the DISCONNECT backpressure policy",
	})

	replayedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wirebus_replayed_frames_total",
		Help: "Total historical frames replayed on subscribe",
	})

	topicsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wirebus_topics_active",
		Help: "Current number of topics",
	})

	subscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wirebus_subscribers_active",
		Help: "Current number of registered subscribers",
	})
)

// Drop reasons used as label values on droppedTotal.
const (
	dropReasonOldestEvicted   = "oldest_evicted"
	dropReasonQueueOverflow   = "queue_overflow"
	dropReasonTransportClosed = "transport_closed"
	dropReasonWriteFailed     = "write_failed"
)

func init() {
	prometheus.MustRegister(
		publishesTotal,
		enqueuedTotal,
		droppedTotal,
		slowConsumersTotal,
		replayedTotal,
		topicsActive,
		subscribersActive,
	)
}
