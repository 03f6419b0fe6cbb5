// Package metrics exposes Prometheus instrumentation for the merge pipeline.
// Every method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "logmerge"

// Metrics holds the pipeline collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	LinesTotal      *prometheus.CounterVec
	RecordsDrained  prometheus.Counter
	DrainDuration   prometheus.Histogram
	StoreRecords    prometheus.Gauge
	FileErrors      *prometheus.CounterVec
	WatchersActive  prometheus.Gauge
	WatchersAborted prometheus.Counter
}

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		LinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "lines_total",
				Help:      "Complete lines handed to the parser",
			},
			[]string{"result"},
		),
		RecordsDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drainer",
			Name:      "records_total",
			Help:      "Records moved from the buffer into the merge store",
		}),
		DrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "drainer",
			Name:      "duration_seconds",
			Help:      "Time spent merging one drained batch",
			Buckets:   prometheus.DefBuckets,
		}),
		StoreRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records",
			Help:      "Records held in the merge store",
		}),
		FileErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "errors_total",
				Help:      "I/O errors while polling a watched file",
			},
			[]string{"file"},
		),
		WatchersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "active",
			Help:      "File watchers currently running",
		}),
		WatchersAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "aborted_total",
			Help:      "Watchers abandoned after missing the shutdown deadline",
		}),
	}

	m.registry.MustRegister(
		m.LinesTotal,
		m.RecordsDrained,
		m.DrainDuration,
		m.StoreRecords,
		m.FileErrors,
		m.WatchersActive,
		m.WatchersAborted,
	)
	return m
}

// Registry returns the registry holding the pipeline collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLine counts one parsed line as accepted or rejected.
func (m *Metrics) ObserveLine(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.LinesTotal.WithLabelValues("accepted").Inc()
	} else {
		m.LinesTotal.WithLabelValues("rejected").Inc()
	}
}

// ObserveDrain records one non-empty drain.
func (m *Metrics) ObserveDrain(n int, elapsed time.Duration, storeLen int) {
	if m == nil {
		return
	}
	m.RecordsDrained.Add(float64(n))
	m.DrainDuration.Observe(elapsed.Seconds())
	m.StoreRecords.Set(float64(storeLen))
}

// FileError counts a polling failure for path.
func (m *Metrics) FileError(path string) {
	if m == nil {
		return
	}
	m.FileErrors.WithLabelValues(path).Inc()
}

// WatcherStarted and WatcherStopped track the running watcher count.
func (m *Metrics) WatcherStarted() {
	if m == nil {
		return
	}
	m.WatchersActive.Inc()
}

func (m *Metrics) WatcherStopped() {
	if m == nil {
		return
	}
	m.WatchersActive.Dec()
}

// WatcherAborted counts a watcher that missed the shutdown deadline.
func (m *Metrics) WatcherAborted() {
	if m == nil {
		return
	}
	m.WatchersAborted.Inc()
}
