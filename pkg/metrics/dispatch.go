package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics records outcomes of the bidding engine.
type DispatchMetrics struct {
	resolutions *prometheus.CounterVec
	attempts    prometheus.Histogram
	instant     *prometheus.CounterVec
	noShows     prometheus.Counter
	windows     *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	m := &DispatchMetrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_resolution_total",
			Help: "Competitive bid window resolutions by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_resolution_attempts",
			Help:    "Attempts needed per resolution, including conflict retries.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
		instant: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_instant_assign_total",
			Help: "Instant accept and manager assign outcomes.",
		}, []string{"outcome"}),
		noShows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_no_shows_total",
			Help: "Assignments escalated after a missed arrival.",
		}),
		windows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_bid_windows_opened_total",
			Help: "Bid windows opened by mode.",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.resolutions, m.attempts, m.instant, m.noShows, m.windows)
	return m
}

// ObserveResolution records a resolution outcome and the attempts it took.
func (m *DispatchMetrics) ObserveResolution(outcome string, attempts int) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(normalizeLabel(outcome)).Inc()
	if attempts > 0 {
		m.attempts.Observe(float64(attempts))
	}
}

// IncInstantAssign counts an instant or manager assignment outcome.
func (m *DispatchMetrics) IncInstantAssign(outcome string) {
	if m == nil || m.instant == nil {
		return
	}
	m.instant.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncNoShow counts one detected no-show.
func (m *DispatchMetrics) IncNoShow() {
	if m == nil || m.noShows == nil {
		return
	}
	m.noShows.Inc()
}

// IncWindowOpened counts a newly opened window.
func (m *DispatchMetrics) IncWindowOpened(mode string) {
	if m == nil || m.windows == nil {
		return
	}
	m.windows.WithLabelValues(normalizeLabel(mode)).Inc()
}
