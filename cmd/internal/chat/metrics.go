package chat

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the core's Prometheus collectors.
type Metrics struct {
	Accepted        prometheus.Counter
	Rejected        prometheus.Counter
	Delivered       prometheus.Counter
	DeliveryMissed  prometheus.Counter
	HistoryFetches  prometheus.Counter
	MarkReadBatches prometheus.Counter
	SummaryFailures prometheus.Counter
}

// NewMetrics registers the core collectors on reg and returns them.
// A nil registerer yields working but unregistered collectors (handy in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse", Subsystem: "chat", Name: "messages_accepted_total",
			Help: "Messages durably accepted by the ingestion coordinator.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse", Subsystem: "chat", Name: "messages_rejected_total",
			Help: "Send requests rejected before any side effect.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse", Subsystem: "chat", Name: "messages_pushed_total",
			Help: "Messages pushed to at least one live recipient connection.",
		}),
		DeliveryMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse", Subsystem: "chat", Name: "messages_pending_total",
			Help: "Messages stored while the recipient had no live connection.",
		}),
		HistoryFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse", Subsystem: "chat", Name: "history_fetches_total",
			Help: "History assembly requests served.",
		}),
		MarkReadBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse", Subsystem: "chat", Name: "mark_read_batches_total",
			Help: "Batched read-state updates issued by history fetches.",
		}),
		SummaryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse", Subsystem: "chat", Name: "summary_upsert_failures_total",
			Help: "Orientation-summary upserts that failed after the message was persisted.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Accepted, m.Rejected, m.Delivered, m.DeliveryMissed,
			m.HistoryFetches, m.MarkReadBatches, m.SummaryFailures,
		)
	}
	return m
}
