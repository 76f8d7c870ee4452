package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "venue"

// Metrics собирает счетчики реестра турниров.
type Metrics struct {
	GatewayCalls       *prometheus.CounterVec
	RegistrationResult *prometheus.CounterVec
	RefreshSkipped     *prometheus.CounterVec
	BackgroundFailures *prometheus.CounterVec
	CachedTournaments  prometheus.Gauge
	CachedRegistration prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Calls to the persistence gateway by collection, operation and outcome.",
		}, []string{"collection", "op", "outcome"}),
		RegistrationResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		RefreshSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "refresh_throttled_total",
			Help:      "Refresh calls skipped by the throttle window.",
		}, []string{"kind"}),
		BackgroundFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "background_failures_total",
			Help:      "Failed background reconciliation tasks.",
		}, []string{"task"}),
		CachedTournaments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "cached_tournaments",
			Help:      "Tournaments currently held in the registry cache.",
		}),
		CachedRegistration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "cached_registrations",
			Help:      "Registrations currently held in the registry cache.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.GatewayCalls,
		m.RegistrationResult,
		m.RefreshSkipped,
		m.BackgroundFailures,
		m.CachedTournaments,
		m.CachedRegistration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
