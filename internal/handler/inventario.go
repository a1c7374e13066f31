package handler

import (
	"net/http"

	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/service"

	"github.com/gin-gonic/gin"
)

// InventarioHandler serves SIM batches and units.
type InventarioHandler struct{ svc service.InventarioService }

func NewInventarioHandler(svc service.InventarioService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// CrearLote godoc
// @Summary Carga un lote de hasta 20 SIMs
// @Tags inventario
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearLoteRequest true "Lote"
// @Success 201 {object} dto.CrearLoteResponse
// @Failure 400 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/sims/lotes [post]
func (h *InventarioHandler) CrearLote(c *gin.Context) {
	var req dto.CrearLoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateBatch(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *InventarioHandler) ListarLotes(c *gin.Context) {
	resp, err := h.svc.ListLotes(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *InventarioHandler) SimsDeLote(c *gin.Context) {
	resp, err := h.svc.ListByLote(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// AsignarPlan godoc
// @Summary Asigna un plan al lote y a sus SIMs no vendidas
// @Tags inventario
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del lote"
// @Param body body dto.AsignarPlanRequest true "Plan"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} apierror.APIError
// @Router /v1/sims/lotes/{id}/plan [put]
func (h *InventarioHandler) AsignarPlan(c *gin.Context) {
	var req dto.AsignarPlanRequest
	if !bindAndValidate(c, &req) {
		return
	}
	n, err := h.svc.AssignPlan(c.Request.Context(), c.Param("id"), req.Plan)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lote_id": c.Param("id"), "sims_actualizadas": n})
}

func (h *InventarioHandler) AgregarSim(c *gin.Context) {
	var req dto.AgregarSimRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddUnit(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// EliminarSim removes one unit; sold units need force=true.
func (h *InventarioHandler) EliminarSim(c *gin.Context) {
	var req dto.EliminarSimRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cand, err := req.Candidato()
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.svc.RemoveUnit(c.Request.Context(), cand, req.Force); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListarSims godoc
// @Summary Lista SIMs por estado, lote o búsqueda libre
// @Tags inventario
// @Produce json
// @Security BearerAuth
// @Param estado query string false "available | recargado | vendido | defectuosa"
// @Param lote_id query string false "Lote"
// @Param q query string false "ICCID o número"
// @Success 200 {object} map[string]interface{}
// @Router /v1/sims [get]
func (h *InventarioHandler) ListarSims(c *gin.Context) {
	var filter dto.SimFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListSims(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp, "total": len(resp)})
}

// BuscarSim resolves a unit from any identifier the client has.
func (h *InventarioHandler) BuscarSim(c *gin.Context) {
	req := dto.SimRefRequest{ICCID: c.Query("iccid"), NumeroLinea: c.Query("numero_linea")}
	if id := c.Query("sim_id"); id != "" {
		req.SimID = &id
	}
	cand, err := req.Candidato()
	if err != nil {
		fail(c, err)
		return
	}
	sim, err := h.svc.Resolve(c.Request.Context(), cand)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, service.SimToResponse(sim))
}

// HistorialSim godoc
// @Summary Movimientos de estado de una SIM
// @Tags sims
// @Produce json
// @Param iccid query string false "ICCID"
// @Param numero_linea query string false "Número de línea"
// @Param sim_id query string false "ID de la SIM"
// @Success 200 {object} dto.HistorialSimResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/sims/historial [get]
func (h *InventarioHandler) HistorialSim(c *gin.Context) {
	req := dto.SimRefRequest{ICCID: c.Query("iccid"), NumeroLinea: c.Query("numero_linea")}
	if id := c.Query("sim_id"); id != "" {
		req.SimID = &id
	}
	cand, err := req.Candidato()
	if err != nil {
		fail(c, err)
		return
	}
	resp, err := h.svc.Historial(c.Request.Context(), cand)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InventarioHandler) PlanesDisponibles(c *gin.Context) {
	resp, err := h.svc.PlanesDisponibles(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
