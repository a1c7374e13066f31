package handler

import (
	"net/http"
	"strconv"

	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/middleware"
	"github.com/Sebas931/Local-sim-main/internal/service"

	"github.com/gin-gonic/gin"
)

type DevolucionesHandler struct{ svc service.DevolucionService }

func NewDevolucionesHandler(svc service.DevolucionService) *DevolucionesHandler {
	return &DevolucionesHandler{svc: svc}
}

// Intercambio godoc
// @Summary Cambia una SIM defectuosa vendida por otra disponible
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.IntercambioRequest true "Intercambio"
// @Success 201 {object} dto.DevolucionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/devoluciones/intercambio [post]
func (h *DevolucionesHandler) Intercambio(c *gin.Context) {
	var req dto.IntercambioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Exchange(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Reembolso godoc
// @Summary Devuelve el dinero de una venta y anula la venta
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.DevolucionDineroRequest true "Devolución de dinero"
// @Success 201 {object} dto.DevolucionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/devoluciones/reembolso [post]
func (h *DevolucionesHandler) Reembolso(c *gin.Context) {
	var req dto.DevolucionDineroRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refund(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DevolucionesHandler) Listar(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	resp, err := h.svc.List(c.Request.Context(), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DevolucionesHandler) Obtener(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SimsVendidas lists units that can be returned.
func (h *DevolucionesHandler) SimsVendidas(c *gin.Context) {
	resp, err := h.svc.SoldUnits(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// SimsReemplazo lists units that can be handed out in an exchange.
func (h *DevolucionesHandler) SimsReemplazo(c *gin.Context) {
	resp, err := h.svc.ReplacementUnits(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
