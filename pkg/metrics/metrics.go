package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "glrunner"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder owns a private registry holding the glrunner metrics.
type Recorder struct {
	registry *prometheus.Registry

	registrations    *prometheus.CounterVec
	unregistrations  *prometheus.CounterVec
	cacheHits        prometheus.Counter
	assembleDuration prometheus.Histogram
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "registrations_total",
				Help:      "Total runner registration attempts.",
			}, []string{"result"}),
		unregistrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "unregistrations_total",
				Help:      "Total runner unregistration attempts.",
			}, []string{"result"}),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "token_cache_hits_total",
				Help:      "Total assemblies that reused a cached runner token.",
			}),
		assembleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "assemble_duration_seconds",
				Help:      "Bucketed histogram of the time (s) spent assembling one runner.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			}),
	}
	r.registry.MustRegister(r.registrations, r.unregistrations, r.cacheHits, r.assembleDuration)

	// Pre-create the label combinations so zero values are exported.
	for _, res := range []string{ResultSuccess, ResultFailure} {
		r.registrations.WithLabelValues(res)
		r.unregistrations.WithLabelValues(res)
	}
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Registration records one registration attempt that ended with err.
func (r *Recorder) Registration(err error) {
	if r == nil {
		return
	}
	r.registrations.WithLabelValues(result(err)).Inc()
}

// Unregistration records one unregistration attempt that ended with err.
func (r *Recorder) Unregistration(err error) {
	if r == nil {
		return
	}
	r.unregistrations.WithLabelValues(result(err)).Inc()
}

// CacheHit records an assembly served from the token cache.
func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

// ObserveAssemble records the duration of one assembly.
func (r *Recorder) ObserveAssemble(d time.Duration) {
	if r == nil {
		return
	}
	r.assembleDuration.Observe(d.Seconds())
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
