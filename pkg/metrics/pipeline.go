package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records shredding outcomes for the worker.
type PipelineMetrics struct {
	shredded  prometheus.Counter
	failed    *prometheus.CounterVec
	documents prometheus.Counter
	duration  prometheus.Histogram
}

// NewPipelineMetrics registers the shredding metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	shredded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_shredded_total",
		Help: "Events successfully shredded and loaded.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_failed_total",
		Help: "Events routed to the bad rows sink.",
	}, []string{"reason"})
	documents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_emitted_total",
		Help: "Shredded documents written to the warehouse.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shred_duration_seconds",
		Help:    "Duration of a single shredding call in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(shredded, failed, documents, duration)
	return &PipelineMetrics{
		shredded:  shredded,
		failed:    failed,
		documents: documents,
		duration:  duration,
	}
}

// IncShredded counts one successfully shredded event.
func (p *PipelineMetrics) IncShredded() {
	if p == nil || p.shredded == nil {
		return
	}
	p.shredded.Inc()
}

// IncFailed counts one failed event with the failure reason.
func (p *PipelineMetrics) IncFailed(reason string) {
	if p == nil || p.failed == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	p.failed.WithLabelValues(reason).Inc()
}

// AddDocuments counts documents written to the warehouse.
func (p *PipelineMetrics) AddDocuments(n int) {
	if p == nil || p.documents == nil || n <= 0 {
		return
	}
	p.documents.Add(float64(n))
}

// ObserveShred records the duration of one shredding call.
func (p *PipelineMetrics) ObserveShred(duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.Observe(duration.Seconds())
}
