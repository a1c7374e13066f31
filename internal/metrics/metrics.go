// Package metrics exposes the Prometheus collectors of the POS backend.
// Every method is safe on a nil *Metrics so services can run without it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "localsim"

// Metrics owns a private registry so tests can build as many instances as they need.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	ventas       *prometheus.CounterVec
	ventasMonto  *prometheus.CounterVec
	turnos       *prometheus.CounterVec
	recargas     *prometheus.CounterVec
	reintentos   prometheus.Counter
	jobs         *prometheus.CounterVec
	simsSinLazo  prometheus.Counter
	circuito     *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route and status.",
	}, []string{"method", "route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.ventas = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ventas_total",
		Help:      "Sales recorded, by payment method.",
	}, []string{"metodo"})

	m.ventasMonto = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ventas_monto_total",
		Help:      "Sales amount recorded, by payment method.",
	}, []string{"metodo"})

	m.turnos = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turnos_total",
		Help:      "Shift transitions, by event (apertura, cierre, cierre_descuadrado).",
	}, []string{"evento"})

	m.recargas = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recargas_total",
		Help:      "Provider top-ups, by mode and result.",
	}, []string{"modo", "resultado"})

	m.reintentos = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recargas_reintentos_total",
		Help:      "Retried provider calls in batch top-ups.",
	})

	m.jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Background jobs processed, by type and result.",
	}, []string{"tipo", "resultado"})

	m.simsSinLazo = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sims_no_vinculadas_total",
		Help:      "Sale lines whose SIM could not be marked as sold.",
	})

	m.circuito = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_state",
		Help:      "Circuit breaker state per partner (0 closed, 1 open, 2 half-open).",
	}, []string{"partner"})

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.ventas, m.ventasMonto, m.turnos,
		m.recargas, m.reintentos, m.jobs, m.simsSinLazo, m.circuito,
	)
	return m
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// GinMiddleware records count and latency per route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) VentaRegistrada(metodo string, monto float64, simsNoVinculadas int) {
	if m == nil {
		return
	}
	m.ventas.WithLabelValues(metodo).Inc()
	m.ventasMonto.WithLabelValues(metodo).Add(monto)
	if simsNoVinculadas > 0 {
		m.simsSinLazo.Add(float64(simsNoVinculadas))
	}
}

func (m *Metrics) TurnoAbierto() {
	if m == nil {
		return
	}
	m.turnos.WithLabelValues("apertura").Inc()
}

// TurnoCerrado counts a closure; descuadrado marks one with any non-zero cash difference.
func (m *Metrics) TurnoCerrado(descuadrado bool) {
	if m == nil {
		return
	}
	m.turnos.WithLabelValues("cierre").Inc()
	if descuadrado {
		m.turnos.WithLabelValues("cierre_descuadrado").Inc()
	}
}

// Recarga counts one top-up outcome. modo is "individual" or "lote".
func (m *Metrics) Recarga(modo string, ok bool) {
	if m == nil {
		return
	}
	m.recargas.WithLabelValues(modo, resultado(ok)).Inc()
}

func (m *Metrics) RecargaReintento() {
	if m == nil {
		return
	}
	m.reintentos.Inc()
}

func (m *Metrics) Job(tipo string, ok bool) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(tipo, resultado(ok)).Inc()
}

// CircuitState records the numeric state of a partner breaker.
func (m *Metrics) CircuitState(partner string, state int) {
	if m == nil {
		return
	}
	m.circuito.WithLabelValues(partner).Set(float64(state))
}

func resultado(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
