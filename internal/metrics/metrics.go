package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CallKindCounter returns call totals split into plain callbacks and
// voicemails (recordings that carry a transcript).
type CallKindCounter interface {
	CountByKind(ctx context.Context) (callbacks, voicemails int64, err error)
}

// PendingTranscriptionCounter returns the number of transcripts still
// waiting for their recording to arrive.
type PendingTranscriptionCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Collector is a prometheus.Collector that gathers Donorline metrics at scrape time.
type Collector struct {
	calls     CallKindCounter
	pending   PendingTranscriptionCounter
	startTime time.Time

	// Metric descriptors.
	callsTotalDesc *prometheus.Desc
	pendingDesc    *prometheus.Desc
	uptimeDesc     *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(calls CallKindCounter, pending PendingTranscriptionCounter, startTime time.Time) *Collector {
	return &Collector{
		calls:     calls,
		pending:   pending,
		startTime: startTime,

		callsTotalDesc: prometheus.NewDesc(
			"donorline_calls_total",
			"Total inbound calls recorded, by kind",
			[]string{"kind"}, nil,
		),
		pendingDesc: prometheus.NewDesc(
			"donorline_pending_transcriptions",
			"Buffered transcripts waiting for their recording notification",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"donorline_uptime_seconds",
			"Seconds since the Donorline process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.callsTotalDesc
	ch <- c.pendingDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Call volume counters by kind.
	if c.calls != nil {
		callbacks, voicemails, err := c.calls.CountByKind(ctx)
		if err != nil {
			slog.Error("metrics: failed to count calls by kind", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.callsTotalDesc, prometheus.CounterValue,
				float64(callbacks), "callback",
			)
			ch <- prometheus.MustNewConstMetric(
				c.callsTotalDesc, prometheus.CounterValue,
				float64(voicemails), "voicemail",
			)
		}
	}

	// Transcription buffer gauge.
	if c.pending != nil {
		count, err := c.pending.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count pending transcriptions", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.pendingDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	// Uptime gauge.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
