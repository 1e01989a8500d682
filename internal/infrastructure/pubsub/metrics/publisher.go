package metricspubsub

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

const namespace = "stealth"

// Publisher turns transfer events into prometheus metrics.
type Publisher struct {
	statusChanges *prometheus.CounterVec
	settled       *prometheus.CounterVec
	hops          *prometheus.HistogramVec
}

// NewPublisher registers the transfer metrics with reg.
func NewPublisher(reg prometheus.Registerer) (*Publisher, error) {
	p := &Publisher{
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_status_changes_total",
			Help:      "Number of transfer status changes by status.",
		}, []string{"status"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_settled_total",
			Help:      "Number of transfers reaching a terminal status.",
		}, []string{"status", "privacy_level"}),
		hops: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_hops",
			Help:      "Number of hops of the settled transfers.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}, []string{"privacy_level"}),
	}

	for _, c := range []prometheus.Collector{p.statusChanges, p.settled, p.hops} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Publisher) PublishTransferEvent(
	_ context.Context, event ports.TransferEvent,
) error {
	// Drop the hop index to keep label cardinality bounded.
	status, _, _ := strings.Cut(event.Status, "[")
	p.statusChanges.WithLabelValues(status).Inc()

	switch status {
	case "CONFIRMED", "FAILED", "PARTIALLY_FAILED":
		p.settled.WithLabelValues(status, event.PrivacyLevel).Inc()
		p.hops.WithLabelValues(event.PrivacyLevel).Observe(float64(event.HopCount))
	}
	return nil
}

func (p *Publisher) Close() error {
	return nil
}
