package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "simple_mirror"

// PrometheusObserver exports pipeline telemetry to Prometheus.
type PrometheusObserver struct {
	cacheLookups   *prometheus.CounterVec
	uploadAttempts *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	uploadBytes    prometheus.Counter
	mirrors        *prometheus.CounterVec
	mirrorDuration *prometheus.HistogramVec
}

var _ simplemirror.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the pipeline metrics with reg. Collectors
// that are already registered under the same name are reused, so several
// observers can share one registry.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &PrometheusObserver{}

	if o.cacheLookups, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by result (hit, miss, error).",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if o.uploadAttempts, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_attempts_total",
		Help:      "Put-and-verify attempts by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if o.uploadDuration, err = Register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_attempt_duration_seconds",
		Help:      "Latency of a single put-and-verify attempt.",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if o.uploadBytes, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Cumulative payload size of verified uploads.",
	})); err != nil {
		return nil, err
	}
	if o.mirrors, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirrors_total",
		Help:      "Mirror calls by final stage and result.",
	}, []string{"stage", "result"})); err != nil {
		return nil, err
	}
	if o.mirrorDuration, err = Register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mirror_duration_seconds",
		Help:      "End-to-end latency of Mirror calls.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})); err != nil {
		return nil, err
	}

	return o, nil
}

// Register registers c with reg. When an identical collector is already
// registered, the existing one is returned instead.
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordCacheLookup(hit bool, err error) {
	if o == nil {
		return
	}
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	o.cacheLookups.WithLabelValues(result).Inc()
}

func (o *PrometheusObserver) RecordUploadAttempt(duration time.Duration, sizeBytes int, err error) {
	if o == nil {
		return
	}
	o.uploadDuration.Observe(duration.Seconds())
	if err != nil {
		o.uploadAttempts.WithLabelValues("failure").Inc()
		return
	}
	o.uploadAttempts.WithLabelValues("success").Inc()
	o.uploadBytes.Add(float64(sizeBytes))
}

func (o *PrometheusObserver) RecordMirror(stage simplemirror.Stage, duration time.Duration, err error) {
	if o == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
		if simplemirror.IsNoResult(err) {
			result = "no_result"
		}
	}
	o.mirrors.WithLabelValues(stage.String(), result).Inc()
	o.mirrorDuration.WithLabelValues(stage.String()).Observe(duration.Seconds())
}
