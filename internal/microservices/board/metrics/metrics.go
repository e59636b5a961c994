package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the mutation coordinator and the order fetches.
type Metrics struct {
	Mutations     *prometheus.CounterVec
	Rejected      *prometheus.CounterVec
	Inflight      prometheus.Gauge
	SubmitLatency prometheus.Histogram
	Fetches       *prometheus.CounterVec
	ActiveOrders  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchen_sync_mutations_total",
			Help: "Settled status mutations by outcome",
		}, []string{"outcome"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchen_sync_mutations_rejected_total",
			Help: "Actions rejected before any store change",
		}, []string{"reason"}),
		Inflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "kitchen_sync_mutations_inflight",
			Help: "Status change requests awaiting the backend",
		}),
		SubmitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kitchen_sync_submit_duration_seconds",
			Help:    "Latency of status change requests",
			Buckets: prometheus.DefBuckets,
		}),
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchen_sync_fetches_total",
			Help: "Active order fetches by result",
		}, []string{"result"}),
		ActiveOrders: f.NewGauge(prometheus.GaugeOpts{
			Name: "kitchen_sync_active_orders",
			Help: "Orders currently held by the board",
		}),
	}
}
