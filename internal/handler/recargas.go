package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/middleware"
	"github.com/Sebas931/Local-sim-main/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type RecargasHandler struct{ svc service.RecargaService }

func NewRecargasHandler(svc service.RecargaService) *RecargasHandler {
	return &RecargasHandler{svc: svc}
}

// Recargar godoc
// @Summary Recarga una SIM con un paquete Winred
// @Description Una sola llamada al proveedor, sin reintentos. Si Winred rechaza la recarga la SIM no cambia.
// @Tags recargas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RecargaRequest true "SIM y paquete"
// @Success 200 {object} dto.RecargaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 502 {object} apierror.APIError
// @Router /v1/recargas [post]
func (h *RecargasHandler) Recargar(c *gin.Context) {
	var req dto.RecargaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.TopUp(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecargarLote runs the batch top-up and answers with the final result.
func (h *RecargasHandler) RecargarLote(c *gin.Context) {
	var req dto.RecargaLoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.TopUpBatch(c.Request.Context(), req, nil)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecargarLoteStream godoc
// @Summary Recarga un lote emitiendo el progreso como Server-Sent Events
// @Tags recargas
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param body body dto.RecargaLoteRequest true "Lote y paquete"
// @Success 200 {object} dto.EventoProgreso
// @Router /v1/recargas/lote/stream [post]
func (h *RecargasHandler) RecargarLoteStream(c *gin.Context) {
	var req dto.RecargaLoteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	events := make(chan dto.EventoProgreso, 8)
	errc := make(chan error, 1)
	ctx := c.Request.Context()
	go func() {
		defer close(events)
		_, err := h.svc.TopUpBatch(ctx, req, func(ev dto.EventoProgreso) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		errc <- err
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			if err := <-errc; err != nil {
				c.SSEvent(dto.EventoError, gin.H{"message": err.Error()})
			}
			return false
		}
		c.SSEvent(ev.Tipo, ev)
		return true
	})
}

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(*http.Request) bool { return true },
}

// RecargarLoteWS is the websocket variant: the client sends one
// RecargaLoteRequest and receives every progress event as a JSON message.
func (h *RecargasHandler) RecargarLoteWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("recargas: upgrade websocket fallido")
		return
	}
	defer conn.Close()

	usuario := middleware.GetClaims(c).Username
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var req dto.RecargaLoteRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(dto.EventoProgreso{Tipo: dto.EventoError, Mensaje: "solicitud inválida"})
		return
	}
	if err := validate.Struct(req); err != nil {
		_ = conn.WriteJSON(dto.EventoProgreso{Tipo: dto.EventoError, Mensaje: err.Error()})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	log.Info().Str("usuario", usuario).Str("lote_id", req.LoteID).Msg("recargas: lote por websocket")
	_, err = h.svc.TopUpBatch(c.Request.Context(), req, func(ev dto.EventoProgreso) {
		if werr := conn.WriteJSON(ev); werr != nil {
			log.Debug().Err(werr).Msg("recargas: cliente websocket desconectado")
		}
	})
	if err != nil {
		msg, _ := json.Marshal(dto.EventoProgreso{Tipo: dto.EventoError, Mensaje: err.Error()})
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *RecargasHandler) Paquetes(c *gin.Context) {
	resp, err := h.svc.Packages(c.Request.Context(), c.Query("parent_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *RecargasHandler) Saldo(c *gin.Context) {
	resp, err := h.svc.Balance(c.Request.Context(), c.Query("suscriber"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
