package handler

import (
	"net/http"

	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/service"

	"github.com/gin-gonic/gin"
)

type ESimsHandler struct{ svc service.ESimService }

func NewESimsHandler(svc service.ESimService) *ESimsHandler { return &ESimsHandler{svc: svc} }

func (h *ESimsHandler) Crear(c *gin.Context) {
	var req dto.CrearESimRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CrearLote godoc
// @Summary Carga masiva de eSIMs; las filas duplicadas se omiten
// @Tags esims
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearESimLoteRequest true "eSIMs"
// @Success 201 {object} dto.CrearESimLoteResponse
// @Router /v1/esims/lote [post]
func (h *ESimsHandler) CrearLote(c *gin.Context) {
	var req dto.CrearESimLoteRequest
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

func (h *ESimsHandler) Listar(c *gin.Context) {
	var filter dto.ESimFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ESimsHandler) Obtener(c *gin.Context) {
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

func (h *ESimsHandler) Vender(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.VenderESimRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Sell(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ESimsHandler) Inactivar(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.MarkInactive(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegenerarQR godoc
// @Summary Regenera el QR de una eSIM vencida o inactiva y la deja disponible
// @Tags esims
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la eSIM"
// @Param body body dto.RegenerarQRRequest true "Nuevo QR"
// @Success 200 {object} dto.ESimResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/esims/{id}/regenerar-qr [post]
func (h *ESimsHandler) RegenerarQR(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.RegenerarQRRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegenerateQR(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ESimsHandler) Estadisticas(c *gin.Context) {
	resp, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
