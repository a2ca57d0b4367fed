package metrics

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the counters and gauges of the front end. A nil
// *Collectors is valid and records nothing, which keeps tests and optional
// wiring free of nil checks.
type Collectors struct {
	registry *prometheus.Registry

	PollOutcomes        *prometheus.CounterVec
	ActiveQueries       prometheus.Gauge
	GatewayRequests     *prometheus.CounterVec
	SubmissionsRejected *prometheus.CounterVec
}

func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Collectors{
		registry: reg,
		PollOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prawnik_poll_outcomes_total",
			Help: "Terminal outcomes of response pollers",
		}, []string{"poller", "outcome"}),
		ActiveQueries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "prawnik_active_queries",
			Help: "Queries currently holding an admission slot, across all sessions",
		}),
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prawnik_gateway_requests_total",
			Help: "Backend API requests by method and response status (0 = no response)",
		}, []string{"method", "status"}),
		SubmissionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prawnik_submissions_rejected_total",
			Help: "Query submissions refused before reaching the backend",
		}, []string{"reason"}),
	}
}

func (c *Collectors) ObservePollOutcome(poller, outcome string) {
	if c == nil {
		return
	}
	c.PollOutcomes.WithLabelValues(poller, outcome).Inc()
}

func (c *Collectors) ActiveQueriesDelta(delta int) {
	if c == nil {
		return
	}
	c.ActiveQueries.Add(float64(delta))
}

func (c *Collectors) ObserveGatewayRequest(method string, status int) {
	if c == nil {
		return
	}
	c.GatewayRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (c *Collectors) ObserveRejectedSubmission(reason string) {
	if c == nil {
		return
	}
	c.SubmissionsRejected.WithLabelValues(reason).Inc()
}

// Handler exposes the registry on a fiber route.
func (c *Collectors) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
