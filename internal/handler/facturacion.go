package handler

import (
	"net/http"
	"strconv"

	"github.com/Sebas931/Local-sim-main/internal/service"
	"github.com/Sebas931/Local-sim-main/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type FacturacionHandler struct {
	svc service.FacturacionService
	rdb *redis.Client
}

func NewFacturacionHandler(svc service.FacturacionService, rdb *redis.Client) *FacturacionHandler {
	return &FacturacionHandler{svc: svc, rdb: rdb}
}

// ObtenerFactura godoc
// @Summary Estado de la factura Siigo de una venta
// @Tags facturacion
// @Produce json
// @Security BearerAuth
// @Param venta_id path string true "UUID de la venta"
// @Success 200 {object} dto.FacturaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/facturacion/{venta_id} [get]
func (h *FacturacionHandler) ObtenerFactura(c *gin.Context) {
	id, ok := uuidParam(c, "venta_id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerFactura(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FacturacionHandler) Reintentar(c *gin.Context) {
	id, ok := uuidParam(c, "venta_id")
	if !ok {
		return
	}
	if err := h.svc.Reintentar(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"venta_id": id.String(), "encolada": true})
}

// DLQ shows the most recent jobs that exhausted their retries.
func (h *FacturacionHandler) DLQ(c *gin.Context) {
	n, _ := strconv.ParseInt(c.DefaultQuery("n", "20"), 10, 64)
	if n < 1 || n > 200 {
		n = 20
	}
	queue := c.DefaultQuery("queue", worker.QueueFacturacion)
	entries, err := worker.PeekDLQ(c.Request.Context(), h.rdb, queue, n)
	if err != nil {
		fail(c, err)
		return
	}
	total, _ := worker.DLQLength(c.Request.Context(), h.rdb, queue)
	c.JSON(http.StatusOK, gin.H{"queue": queue, "total": total, "data": entries})
}
