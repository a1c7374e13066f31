package handler

import (
	"net/http"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/apierror"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/middleware"
	"github.com/Sebas931/Local-sim-main/internal/service"

	"github.com/gin-gonic/gin"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// RegistrarMovimiento godoc
// @Summary Registra un ingreso o egreso manual en el turno abierto
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimientoManualRequest true "Movimiento manual"
// @Success 201 {object} dto.MovimientoResponse
// @Failure 412 {object} apierror.APIError
// @Router /v1/caja/movimiento [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoManualRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Append(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Totales returns the per-method sales totals of a turno.
func (h *CajaHandler) Totales(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.SumByMethod(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TotalesRango returns per-method sales totals between two dates (YYYY-MM-DD,
// hasta inclusive).
func (h *CajaHandler) TotalesRango(c *gin.Context) {
	desde, err := time.ParseInLocation("2006-01-02", c.Query("desde"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("desde debe tener formato YYYY-MM-DD"))
		return
	}
	hasta, err := time.ParseInLocation("2006-01-02", c.Query("hasta"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("hasta debe tener formato YYYY-MM-DD"))
		return
	}
	resp, err := h.svc.SumByMethodRange(c.Request.Context(), desde, hasta.AddDate(0, 0, 1))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"desde": c.Query("desde"), "hasta": c.Query("hasta"), "totales": resp})
}

// Dashboard godoc
// @Summary Estadísticas de ventas e inventario
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.DashboardResponse
// @Router /v1/dashboard [get]
func (h *CajaHandler) Dashboard(c *gin.Context) {
	resp, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
