// Package metrics exposes conversion and job metrics in the Prometheus
// text format.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docshift"

// Recorder holds the docshift collectors and their registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	reg            *prom.Registry
	conversions    *prom.CounterVec
	convDuration   *prom.HistogramVec
	jobs           *prom.CounterVec
	publishRetries prom.Counter
}

// NewRecorder registers the docshift collectors, plus the Go and process
// collectors, on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prom.NewRegistry(),
		conversions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversions by output format and result",
		}, []string{"format", "result"}),
		convDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of conversions by output format",
			Buckets:   prom.DefBuckets,
		}, []string{"format"}),
		jobs: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Async jobs by final status",
		}, []string{"status"}),
		publishRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_retries_total",
			Help:      "Retried publish attempts",
		}),
	}
	r.reg.MustRegister(r.conversions, r.convDuration, r.jobs, r.publishRetries)
	r.reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return r
}

// ObserveConversion records one conversion.
func (r *Recorder) ObserveConversion(format string, d time.Duration, failed bool) {
	if r == nil {
		return
	}
	result := "success"
	if failed {
		result = "failed"
	}
	r.conversions.WithLabelValues(format, result).Inc()
	r.convDuration.WithLabelValues(format).Observe(d.Seconds())
}

// IncJob records a job reaching a final status.
func (r *Recorder) IncJob(status string) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(status).Inc()
}

func (r *Recorder) IncPublishRetry() {
	if r == nil {
		return
	}
	r.publishRetries.Inc()
}

// RegisterQueueDepth exports fn as the queue depth gauge, read at scrape time.
func (r *Recorder) RegisterQueueDepth(fn func() int) {
	if r == nil {
		return
	}
	r.reg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Jobs waiting for a worker",
	}, func() float64 { return float64(fn()) }))
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
