package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.VentaRegistrada("cash", 10, 1)
		m.TurnoAbierto()
		m.TurnoCerrado(true)
		m.Recarga("lote", false)
		m.RecargaReintento()
		m.Job("facturacion", true)
		m.CircuitState("siigo", 1)
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.VentaRegistrada("cash", 15000, 0)
	m.VentaRegistrada("cash", 5000, 2)
	m.TurnoCerrado(true)
	m.TurnoCerrado(false)
	m.Recarga("lote", true)
	m.Recarga("lote", false)
	m.RecargaReintento()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ventas.WithLabelValues("cash")))
	assert.Equal(t, 20000.0, testutil.ToFloat64(m.ventasMonto.WithLabelValues("cash")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.simsSinLazo))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.turnos.WithLabelValues("cierre")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turnos.WithLabelValues("cierre_descuadrado")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recargas.WithLabelValues("lote", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recargas.WithLabelValues("lote", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reintentos))

	m.CircuitState("siigo", 1)
	m.CircuitState("siigo", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.circuito.WithLabelValues("siigo")))
}

func TestGinMiddleware_RecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/v1/ventas/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ventas/abc", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/v1/ventas/:id", "204")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	assert.True(t, strings.Contains(string(body), "localsim_http_requests_total"))
}
