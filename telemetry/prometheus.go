// Package telemetry exports go-metrics instruments through Prometheus.
package telemetry

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MichaelAJay/go-metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBuckets are the timer buckets in seconds, 1ms to ~16s.
var DefaultBuckets = prometheus.ExponentialBuckets(0.001, 2, 15)

// family is one Prometheus vector. Label names are fixed by the first
// registration of a metric name.
type family struct {
	name       string
	help       string
	labelNames []string
	collector  prometheus.Collector
	base       metrics.Metric
}

// PrometheusRegistry implements metrics.Registry on a private Prometheus registry.
type PrometheusRegistry struct {
	mu        sync.Mutex
	registry  *prometheus.Registry
	namespace string
	families  map[string]*family
}

// NewPrometheusRegistry creates a registry. Metric names are prefixed with
// namespace when it is not empty. Go runtime and process collectors are
// registered alongside.
func NewPrometheusRegistry(namespace string) *PrometheusRegistry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusRegistry{
		registry:  reg,
		namespace: sanitize(namespace),
		families:  make(map[string]*family),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *PrometheusRegistry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Tags returns the registry's base tags, which are always empty.
func (r *PrometheusRegistry) Tags() metrics.Tags { return metrics.Tags{} }

// Registry returns r.
func (r *PrometheusRegistry) Registry() metrics.Registry { return r }

func (r *PrometheusRegistry) fullName(name string) string {
	if r.namespace == "" {
		return sanitize(name)
	}
	return r.namespace + "_" + sanitize(name)
}

// lookup returns the family for opts, creating it with newCollector on first use.
func (r *PrometheusRegistry) lookup(opts metrics.Options, newCollector func(fullName, help string, labels []string) prometheus.Collector) *family {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.families[opts.Name]; ok {
		return f
	}

	help := opts.Description
	if help == "" {
		help = opts.Name
	}
	f := &family{
		name:       opts.Name,
		help:       help,
		labelNames: labelNames(opts.Tags),
	}
	f.collector = newCollector(r.fullName(opts.Name), help, f.labelNames)
	if err := r.registry.Register(f.collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			f.collector = are.ExistingCollector
		}
	}
	r.families[opts.Name] = f
	return f
}

// Counter creates or retrieves a Counter
func (r *PrometheusRegistry) Counter(opts metrics.Options) metrics.Counter {
	f := r.lookup(opts, func(name, help string, labels []string) prometheus.Collector {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name + "_total", Help: help}, labels)
	})
	c := &counter{family: f, tags: copyTags(opts.Tags)}
	r.setBase(f, c)
	return c
}

// Gauge creates or retrieves a Gauge
func (r *PrometheusRegistry) Gauge(opts metrics.Options) metrics.Gauge {
	f := r.lookup(opts, func(name, help string, labels []string) prometheus.Collector {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	})
	g := &gauge{family: f, tags: copyTags(opts.Tags)}
	r.setBase(f, g)
	return g
}

// Histogram creates or retrieves a Histogram
func (r *PrometheusRegistry) Histogram(opts metrics.Options) metrics.Histogram {
	f := r.lookup(opts, func(name, help string, labels []string) prometheus.Collector {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help}, labels)
	})
	h := &histogram{family: f, tags: copyTags(opts.Tags)}
	r.setBase(f, h)
	return h
}

// Timer creates or retrieves a Timer. Durations are recorded in seconds.
func (r *PrometheusRegistry) Timer(opts metrics.Options) metrics.Timer {
	f := r.lookup(opts, func(name, help string, labels []string) prometheus.Collector {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name + "_seconds",
			Help:    help,
			Buckets: DefaultBuckets,
		}, labels)
	})
	t := &timer{family: f, tags: copyTags(opts.Tags)}
	r.setBase(f, t)
	return t
}

func (r *PrometheusRegistry) setBase(f *family, m metrics.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.base == nil {
		f.base = m
	}
}

// Unregister removes a metric from the registry
func (r *PrometheusRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.families[name]; ok {
		r.registry.Unregister(f.collector)
		delete(r.families, name)
	}
}

// Each iterates over all registered metrics in name order
func (r *PrometheusRegistry) Each(fn func(metrics.Metric)) {
	r.mu.Lock()
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	bases := make([]metrics.Metric, 0, len(names))
	for _, name := range names {
		if base := r.families[name].base; base != nil {
			bases = append(bases, base)
		}
	}
	r.mu.Unlock()

	for _, m := range bases {
		fn(m)
	}
}

// labelValues orders tags by the family's label names. Missing labels are
// empty and unknown tags are dropped.
func (f *family) labelValues(tags metrics.Tags) []string {
	values := make([]string, len(f.labelNames))
	for i, name := range f.labelNames {
		for k, v := range tags {
			if sanitize(k) == name {
				values[i] = v
				break
			}
		}
	}
	return values
}

type counter struct {
	family *family
	tags   metrics.Tags
}

func (c *counter) Name() string        { return c.family.name }
func (c *counter) Description() string { return c.family.help }
func (c *counter) Type() metrics.Type  { return metrics.TypeCounter }
func (c *counter) Tags() metrics.Tags  { return copyTags(c.tags) }
func (c *counter) Inc()                { c.Add(1) }
func (c *counter) Add(value float64) {
	if value < 0 {
		return
	}
	if vec, ok := c.family.collector.(*prometheus.CounterVec); ok {
		vec.WithLabelValues(c.family.labelValues(c.tags)...).Add(value)
	}
}
func (c *counter) With(tags metrics.Tags) metrics.Counter {
	return &counter{family: c.family, tags: mergeTags(c.tags, tags)}
}

type gauge struct {
	family *family
	tags   metrics.Tags
}

func (g *gauge) Name() string        { return g.family.name }
func (g *gauge) Description() string { return g.family.help }
func (g *gauge) Type() metrics.Type  { return metrics.TypeGauge }
func (g *gauge) Tags() metrics.Tags  { return copyTags(g.tags) }
func (g *gauge) apply(fn func(prometheus.Gauge)) {
	if vec, ok := g.family.collector.(*prometheus.GaugeVec); ok {
		fn(vec.WithLabelValues(g.family.labelValues(g.tags)...))
	}
}
func (g *gauge) Set(value float64) { g.apply(func(pg prometheus.Gauge) { pg.Set(value) }) }
func (g *gauge) Add(value float64) { g.apply(func(pg prometheus.Gauge) { pg.Add(value) }) }
func (g *gauge) Inc()              { g.apply(prometheus.Gauge.Inc) }
func (g *gauge) Dec()              { g.apply(prometheus.Gauge.Dec) }
func (g *gauge) With(tags metrics.Tags) metrics.Gauge {
	return &gauge{family: g.family, tags: mergeTags(g.tags, tags)}
}

type histogram struct {
	family *family
	tags   metrics.Tags
}

func (h *histogram) Name() string        { return h.family.name }
func (h *histogram) Description() string { return h.family.help }
func (h *histogram) Type() metrics.Type  { return metrics.TypeHistogram }
func (h *histogram) Tags() metrics.Tags  { return copyTags(h.tags) }
func (h *histogram) Observe(value float64) {
	if vec, ok := h.family.collector.(*prometheus.HistogramVec); ok {
		vec.WithLabelValues(h.family.labelValues(h.tags)...).Observe(value)
	}
}
func (h *histogram) Record(value float64)        { h.Observe(value) }
func (h *histogram) RecordSince(start time.Time) { h.Observe(time.Since(start).Seconds()) }
func (h *histogram) Time(fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	h.Observe(d.Seconds())
	return d
}
func (h *histogram) With(tags metrics.Tags) metrics.Histogram {
	return &histogram{family: h.family, tags: mergeTags(h.tags, tags)}
}

type timer struct {
	family *family
	tags   metrics.Tags
}

func (t *timer) Name() string        { return t.family.name }
func (t *timer) Description() string { return t.family.help }
func (t *timer) Type() metrics.Type  { return metrics.TypeTimer }
func (t *timer) Tags() metrics.Tags  { return copyTags(t.tags) }
func (t *timer) Record(d time.Duration) {
	if vec, ok := t.family.collector.(*prometheus.HistogramVec); ok {
		vec.WithLabelValues(t.family.labelValues(t.tags)...).Observe(d.Seconds())
	}
}
func (t *timer) RecordSince(start time.Time) { t.Record(time.Since(start)) }
func (t *timer) Time(fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	t.Record(d)
	return d
}
func (t *timer) With(tags metrics.Tags) metrics.Timer {
	return &timer{family: t.family, tags: mergeTags(t.tags, tags)}
}

func labelNames(tags metrics.Tags) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, sanitize(k))
	}
	sort.Strings(names)
	return names
}

func copyTags(tags metrics.Tags) metrics.Tags {
	out := make(metrics.Tags, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func mergeTags(base, extra metrics.Tags) metrics.Tags {
	out := copyTags(base)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// sanitize maps a go-metrics name such as "login_security.analyze" to a
// valid Prometheus identifier.
func sanitize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
