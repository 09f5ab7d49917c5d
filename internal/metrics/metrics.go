package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	picksSaved       *prometheus.CounterVec
	poolJoins        *prometheus.CounterVec
	poolsCreated     prometheus.Counter
	signInLinks      prometheus.Counter
	leaderboardBuild prometheus.Histogram
	httpRequests     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		picksSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bowlpickem",
			Name:      "picks_saved_total",
			Help:      "Picks written, by whether the pick was created or changed.",
		}, []string{"action"}),
		poolJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bowlpickem",
			Name:      "pool_joins_total",
			Help:      "Join-by-code attempts that found a pool, by outcome.",
		}, []string{"result"}),
		poolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bowlpickem",
			Name:      "pools_created_total",
			Help:      "Pools created.",
		}),
		signInLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bowlpickem",
			Name:      "sign_in_links_sent_total",
			Help:      "Magic sign-in links issued.",
		}),
		leaderboardBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bowlpickem",
			Name:      "leaderboard_build_seconds",
			Help:      "Time taken to build a pool leaderboard.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bowlpickem",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.picksSaved, m.poolJoins, m.poolsCreated, m.signInLinks, m.leaderboardBuild, m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PickSaved(created bool) {
	if m == nil {
		return
	}
	action := "updated"
	if created {
		action = "created"
	}
	m.picksSaved.WithLabelValues(action).Inc()
}

func (m *Metrics) PoolJoined(alreadyMember bool) {
	if m == nil {
		return
	}
	result := "joined"
	if alreadyMember {
		result = "already_member"
	}
	m.poolJoins.WithLabelValues(result).Inc()
}

func (m *Metrics) PoolCreated() {
	if m == nil {
		return
	}
	m.poolsCreated.Inc()
}

func (m *Metrics) SignInLinkSent() {
	if m == nil {
		return
	}
	m.signInLinks.Inc()
}

func (m *Metrics) ObserveLeaderboardBuild(d time.Duration) {
	if m == nil {
		return
	}
	m.leaderboardBuild.Observe(d.Seconds())
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
