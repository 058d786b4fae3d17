package metrics

// DaemonMetrics holds the owner process metrics.
type DaemonMetrics struct {
	registry *Registry

	// ActionDuration is the wall time of each performed action, sleeps
	// included.
	ActionDuration *Histogram
}

// NewDaemonMetrics creates the owner metrics in a fresh registry.
func NewDaemonMetrics() *DaemonMetrics {
	r := NewRegistry("xhisper")
	return &DaemonMetrics{
		registry:       r,
		ActionDuration: r.Histogram("action_duration_seconds", ActionBuckets),
	}
}

// Action returns the counter of performed actions of the given kind.
func (m *DaemonMetrics) Action(kind string) *Counter {
	return m.registry.Counter("actions_total", Labels{"kind": kind})
}

// Ignored returns the counter of received actions of the given kind that
// emitted no events, such as characters without a key mapping.
func (m *DaemonMetrics) Ignored(kind string) *Counter {
	return m.registry.Counter("actions_ignored_total", Labels{"kind": kind})
}

// Snapshot returns every metric value keyed by name.
func (m *DaemonMetrics) Snapshot() map[string]any {
	return m.registry.Snapshot()
}
