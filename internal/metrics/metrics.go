// Package metrics keeps in-process counters and timing histograms for the
// owner process. Values are reported in the shutdown log line.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Labels represents metric labels.
type Labels map[string]string

// String renders labels in Prometheus form, sorted by key.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}

	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(l))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, l[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	labels Labels
	value  atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(v uint64) {
	c.value.Add(v)
}

// Value returns the current value.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Name returns the metric name including labels.
func (c *Counter) Name() string {
	return c.name + c.labels.String()
}

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	buckets []float64

	mu     sync.Mutex
	counts []uint64
	sum    float64
	count  uint64
}

// ActionBuckets are upper bounds, in seconds, sized for actions made of a
// handful of millisecond sleeps.
var ActionBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

func newHistogram(name string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = ActionBuckets
	}
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)

	return &Histogram{
		name:    name,
		buckets: sorted,
		counts:  make([]uint64, len(sorted)+1), // +1 for +Inf
	}
}

// Observe records a value. Bucket counts are cumulative.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	idx := sort.SearchFloat64s(h.buckets, v)
	for i := idx; i < len(h.counts); i++ {
		h.counts[i]++
	}
}

// ObserveDuration records a duration in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Time runs fn and records how long it took.
func (h *Histogram) Time(fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	h.ObserveDuration(d)
	return d
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Mean returns the mean of observed values.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// BucketCounts returns the cumulative count for each bucket bound, plus +Inf.
func (h *Histogram) BucketCounts() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uint64(nil), h.counts...)
}

// Registry holds named metrics.
type Registry struct {
	namespace string

	mu         sync.RWMutex
	counters   map[string]*Counter
	histograms map[string]*Histogram
}

// NewRegistry creates a Registry whose metric names are prefixed with
// namespace.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace:  namespace,
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) fullName(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "_" + name
}

// Counter returns the counter for name and labels, creating it on first use.
func (r *Registry) Counter(name string, labels Labels) *Counter {
	full := r.fullName(name)
	key := full + labels.String()

	r.mu.RLock()
	c, ok := r.counters[key]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[key]; ok {
		return c
	}
	c = &Counter{name: full, labels: labels}
	r.counters[key] = c
	return c
}

// Histogram returns the histogram for name, creating it on first use.
func (r *Registry) Histogram(name string, buckets []float64) *Histogram {
	full := r.fullName(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[full]; ok {
		return h
	}
	h := newHistogram(full, buckets)
	r.histograms[full] = h
	return h
}

// Snapshot returns the current value of every metric keyed by name.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]any, len(r.counters)+2*len(r.histograms))
	for key, c := range r.counters {
		snapshot[key] = c.Value()
	}
	for name, h := range r.histograms {
		snapshot[name+"_count"] = h.Count()
		snapshot[name+"_mean"] = h.Mean()
	}
	return snapshot
}
