package metrics

import (
	"net/http"
	"time"

	"nav-agent/internal/application/port/output"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ output.MetricsPort = (*Prometheus)(nil)

// Prometheus keeps its collectors on a private registry so several instances
// (one per test, for example) never collide.
type Prometheus struct {
	registry  *prometheus.Registry
	turns     *prometheus.CounterVec
	modelCall *prometheus.HistogramVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navagent_turns_total",
				Help: "Agent turns by outcome.",
			},
			[]string{"outcome"},
		),
		modelCall: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "navagent_model_call_seconds",
				Help:    "Latency of vision model calls.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
			},
			[]string{"provider"},
		),
	}
	p.registry.MustRegister(p.turns, p.modelCall)
	return p
}

func (p *Prometheus) ObserveTurn(outcome output.TurnOutcome) {
	p.turns.WithLabelValues(string(outcome)).Inc()
}

func (p *Prometheus) ObserveModelCall(provider string, d time.Duration) {
	p.modelCall.WithLabelValues(provider).Observe(d.Seconds())
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
