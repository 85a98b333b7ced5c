// Package metrics is a small Prometheus-compatible registry. Metrics are
// grouped into families by base name; label pairs are baked into the series
// name with WithLabels. The registry renders the text exposition format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are the default histogram buckets (in seconds).
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc() { c.val.Add(1) }
func (c *Counter) Add(n int64) { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

func (c *Counter) render(b *strings.Builder, _, series string) {
	fmt.Fprintf(b, "%s %d\n", series, c.Value())
}

// Gauge is an integer value that can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64) { g.val.Store(n) }
func (g *Gauge) Inc() { g.val.Add(1) }
func (g *Gauge) Dec() { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

func (g *Gauge) render(b *strings.Builder, _, series string) {
	fmt.Fprintf(b, "%s %d\n", series, g.Value())
}

// FloatGauge is a gauge holding a float64, such as a cost or a ratio.
type FloatGauge struct{ bits atomic.Uint64 }

func (g *FloatGauge) Set(f float64) { g.bits.Store(math.Float64bits(f)) }
func (g *FloatGauge) Value() float64 { return math.Float64frombits(g.bits.Load()) }

func (g *FloatGauge) render(b *strings.Builder, _, series string) {
	fmt.Fprintf(b, "%s %g\n", series, g.Value())
}

// Histogram tracks the distribution of observed values using fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64 // non-cumulative, one per bucket
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *Histogram {
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	return &Histogram{buckets: b, counts: make([]uint64, len(b))}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	if i := sort.SearchFloat64s(h.buckets, v); i < len(h.buckets) {
		h.counts[i]++
	}
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Histogram) render(b *strings.Builder, base, series string) {
	h.mu.Lock()
	counts := append([]uint64(nil), h.counts...)
	sum, count := h.sum, h.count
	h.mu.Unlock()

	labels := labelsOf(series)
	sep := ""
	if labels != "" {
		sep = ","
	}
	var cumulative uint64
	for i, le := range h.buckets {
		cumulative += counts[i]
		fmt.Fprintf(b, "%s_bucket{%s%sle=\"%g\"} %d\n", base, labels, sep, le, cumulative)
	}
	fmt.Fprintf(b, "%s_bucket{%s%sle=\"+Inf\"} %d\n", base, labels, sep, count)
	fmt.Fprintf(b, "%s_sum%s %g\n", base, braced(labels), sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, braced(labels), count)
}

type series interface {
	render(b *strings.Builder, base, name string)
}

type family struct {
	typ    string
	help   string
	series map[string]series
}

// Registry holds named metrics.
type Registry struct {
	mu       sync.RWMutex
	families map[string]*family
	order    []string
}

// New creates a new Registry.
func New() *Registry {
	return &Registry{families: make(map[string]*family)}
}

// lookup returns the series registered under name, creating it with mk when
// absent. A name already registered with another type yields a fresh,
// unregistered series so callers never receive a mistyped value.
func lookup[T series](r *Registry, name, typ, help string, mk func() T) T {
	base := baseName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[base]
	if !ok {
		f = &family{typ: typ, help: help, series: make(map[string]series)}
		r.families[base] = f
		r.order = append(r.order, base)
	}
	if f.help == "" {
		f.help = help
	}
	if s, ok := f.series[name].(T); ok {
		return s
	}
	s := mk()
	if f.typ == typ {
		f.series[name] = s
	}
	return s
}

// Counter returns (or creates) a counter.
func (r *Registry) Counter(name, help string) *Counter {
	return lookup(r, name, "counter", help, func() *Counter { return &Counter{} })
}

// Gauge returns (or creates) a gauge.
func (r *Registry) Gauge(name, help string) *Gauge {
	return lookup(r, name, "gauge", help, func() *Gauge { return &Gauge{} })
}

// FloatGauge returns (or creates) a float gauge. It renders as a gauge.
func (r *Registry) FloatGauge(name, help string) *FloatGauge {
	return lookup(r, name, "gauge", help, func() *FloatGauge { return &FloatGauge{} })
}

// Histogram returns (or creates) a histogram. nil buckets means DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	return lookup(r, name, "histogram", help, func() *Histogram { return newHistogram(buckets) })
}

// WithLabels returns a series name with labels appended, e.g.
// WithLabels("foo", "k", "v") => `foo{k="v"}`. Odd pairs are ignored.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	pairs := make([]string, 0, len(kvs)/2)
	for i := 0; i < len(kvs); i += 2 {
		pairs = append(pairs, fmt.Sprintf("%s=%q", kvs[i], kvs[i+1]))
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '{'); i != -1 {
		return name[:i]
	}
	return name
}

// labelsOf returns the inside of the braces of a series name.
func labelsOf(name string) string {
	i := strings.IndexByte(name, '{')
	if i == -1 {
		return ""
	}
	return strings.TrimSuffix(name[i+1:], "}")
}

func braced(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

// Render returns the Prometheus text exposition format output. Families
// appear in registration order, series sorted by name.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		f := r.families[base]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, f.typ)

		names := make([]string, 0, len(f.series))
		for n := range f.series {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			f.series[n].render(&b, base, n)
		}
	}
	return b.String()
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Render()))
	})
}

// Mux routes /metrics to the registry and answers "ok" everywhere else.
func (r *Registry) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// ListenAndServe serves h on port until ctx is cancelled, then shuts the
// server down. A clean shutdown returns nil.
func ListenAndServe(ctx context.Context, port int, h http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics: serve :%d: %w", port, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve :%d: %w", port, err)
	}
	return nil
}
