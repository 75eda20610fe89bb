package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "appointments"
	subsystem = "dashboard"
)

// FactLatencyName is the fully qualified name of the fact latency histogram.
const FactLatencyName = namespace + "_" + subsystem + "_fact_latency_seconds"

// DashboardMetrics exposes counters/histograms for the refresh pipeline, fact
// generation, the change feed and live clients.
type DashboardMetrics struct {
	refreshTotal       *prometheus.CounterVec
	changeEventsTotal  *prometheus.CounterVec
	factLatency        *prometheus.HistogramVec
	factFallbacksTotal *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	liveClients        prometheus.Gauge
}

func NewDashboardMetrics(reg prometheus.Registerer) *DashboardMetrics {
	m := &DashboardMetrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "refresh_total",
			Help:      "Total appointment refreshes",
		}, []string{"status"}),
		changeEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "change_events_total",
			Help:      "Total change feed deliveries",
		}, []string{"kind"}),
		factLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fact_latency_seconds",
			Help:      "Latency of fact generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
		}, []string{"category", "status"}),
		factFallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fact_fallbacks_total",
			Help:      "Fact lists replaced by a fixed fallback",
		}, []string{"category", "reason"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Notifications sent per channel",
		}, []string{"kind", "channel", "status"}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "live_clients",
			Help:      "Connected live-update clients",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.refreshTotal, m.changeEventsTotal, m.factLatency, m.factFallbacksTotal, m.notificationsTotal, m.liveClients)
	return m
}

func (m *DashboardMetrics) ObserveRefresh(status string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(status).Inc()
}

func (m *DashboardMetrics) ObserveChangeEvent(kind string) {
	if m == nil {
		return
	}
	m.changeEventsTotal.WithLabelValues(kind).Inc()
}

func (m *DashboardMetrics) ObserveFactLatency(category, status string, seconds float64) {
	if m == nil {
		return
	}
	m.factLatency.WithLabelValues(category, status).Observe(seconds)
}

func (m *DashboardMetrics) ObserveFactFallback(category, reason string) {
	if m == nil {
		return
	}
	m.factFallbacksTotal.WithLabelValues(category, reason).Inc()
}

func (m *DashboardMetrics) ObserveNotification(kind, channel, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind, channel, status).Inc()
}

func (m *DashboardMetrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.liveClients.Set(float64(n))
}
