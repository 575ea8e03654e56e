package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cms"

// Auth counts auth outcomes. A nil *Auth is valid and records nothing,
// so components can be constructed without metrics in tests.
type Auth struct {
	tokensIssued *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	logins       *prometheus.CounterVec
}

// NewAuth registers the auth collectors on reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	a := &Auth{
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Signed tokens by type.",
		}, []string{"type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "rejections_total",
			Help:      "Rejected requests by error kind.",
		}, []string{"kind"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Token refreshes by path (explicit, automatic) and outcome.",
		}, []string{"path", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(a.tokensIssued, a.rejections, a.refreshes, a.logins)
	return a
}

func (a *Auth) TokenIssued(tokenType string) {
	if a == nil {
		return
	}
	a.tokensIssued.WithLabelValues(tokenType).Inc()
}

func (a *Auth) Rejected(kind string) {
	if a == nil {
		return
	}
	a.rejections.WithLabelValues(kind).Inc()
}

func (a *Auth) Refresh(path, outcome string) {
	if a == nil {
		return
	}
	a.refreshes.WithLabelValues(path, outcome).Inc()
}

func (a *Auth) Login(outcome string) {
	if a == nil {
		return
	}
	a.logins.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
