package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records pipeline observability signals on a private Prometheus
// registry. A nil *Collector is a valid no-op. Metric names:
//   - avalon_plugin_discovery_failures_total{kind}
//   - avalon_loader_operations_total{operation,status}
//   - avalon_loader_operation_duration_seconds{operation}
//   - avalon_creator_runs_total{status}
//   - avalon_event_handler_failures_total{event}
type Collector struct {
	registry          *prometheus.Registry
	discoveryFailures *prometheus.CounterVec
	loaderOperations  *prometheus.CounterVec
	loaderDurations   *prometheus.HistogramVec
	creatorRuns       *prometheus.CounterVec
	handlerFailures   *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		discoveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avalon",
			Name:      "plugin_discovery_failures_total",
			Help:      "Plug-in files that failed to load during discovery.",
		}, []string{"kind"}),
		loaderOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avalon",
			Name:      "loader_operations_total",
			Help:      "Loader operations by outcome.",
		}, []string{"operation", "status"}),
		loaderDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "avalon",
			Name:      "loader_operation_duration_seconds",
			Help:      "Duration of loader operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		creatorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avalon",
			Name:      "creator_runs_total",
			Help:      "Creator plug-in runs by outcome.",
		}, []string{"status"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avalon",
			Name:      "event_handler_failures_total",
			Help:      "Event handlers that returned an error or panicked.",
		}, []string{"event"}),
	}

	c.registry.MustRegister(
		c.discoveryFailures,
		c.loaderOperations,
		c.loaderDurations,
		c.creatorRuns,
		c.handlerFailures,
	)
	return c
}

// Registry exposes the underlying registry for scraping or tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// DiscoveryFailure counts a plug-in file that failed to load.
func (c *Collector) DiscoveryFailure(kind string) {
	if c == nil {
		return
	}
	c.discoveryFailures.WithLabelValues(kind).Inc()
}

// LoaderOperation counts a load, update, remove or switch and records its
// duration.
func (c *Collector) LoaderOperation(operation string, started time.Time, err error) {
	if c == nil {
		return
	}
	c.loaderOperations.WithLabelValues(operation, status(err)).Inc()
	c.loaderDurations.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// CreatorRun counts one creator invocation.
func (c *Collector) CreatorRun(err error) {
	if c == nil {
		return
	}
	c.creatorRuns.WithLabelValues(status(err)).Inc()
}

// HandlerFailure counts an event handler failure.
func (c *Collector) HandlerFailure(event string) {
	if c == nil {
		return
	}
	c.handlerFailures.WithLabelValues(event).Inc()
}

// Sample is one counter value from Snapshot.
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// Snapshot gathers the current counter values, sorted by name and labels.
// Histograms report their sample count.
func (c *Collector) Snapshot() ([]Sample, error) {
	if c == nil {
		return nil, nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			pairs := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				pairs = append(pairs, label.GetName()+"="+label.GetValue())
			}
			value := metric.GetCounter().GetValue()
			if metric.GetHistogram() != nil {
				value = float64(metric.GetHistogram().GetSampleCount())
			}
			samples = append(samples, Sample{
				Name:   family.GetName(),
				Labels: strings.Join(pairs, ","),
				Value:  value,
			})
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
