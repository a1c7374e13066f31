package dto

import (
	"strings"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SimRequest struct {
	NumeroLinea string `json:"numero_linea" validate:"required,min=7,max=20"`
	ICCID       string `json:"iccid"        validate:"required,min=10,max=32"`
}

// CrearLoteRequest is the bulk upload of one batch. The 20-unit cap is checked
// by the service so it surfaces as a ValidationError.
type CrearLoteRequest struct {
	LoteID   string       `json:"lote_id"  validate:"required,max=64"`
	Operador string       `json:"operador" validate:"required,max=50"`
	Sims     []SimRequest `json:"sims"     validate:"required,min=1,dive"`
}

type AgregarSimRequest struct {
	LoteID      string `json:"lote_id"      validate:"required,max=64"`
	Operador    string `json:"operador"     validate:"omitempty,max=50"`
	NumeroLinea string `json:"numero_linea" validate:"required,min=7,max=20"`
	ICCID       string `json:"iccid"        validate:"required,min=10,max=32"`
	// CrearLote creates the batch when it does not exist yet
	CrearLote bool `json:"crear_lote"`
}

type AsignarPlanRequest struct {
	Plan string `json:"plan" validate:"required,max=20"`
}

// SimRefRequest carries any of the identifiers a client may have for a SIM.
type SimRefRequest struct {
	SimID       *string `json:"sim_id"       validate:"omitempty,uuid"`
	ICCID       string  `json:"iccid"        validate:"omitempty,max=32"`
	NumeroLinea string  `json:"numero_linea" validate:"omitempty,max=20"`
}

// Candidato converts the request into the structured identifier set.
func (r SimRefRequest) Candidato() (model.CandidatoSim, error) {
	c := model.CandidatoSim{ICCID: strings.TrimSpace(r.ICCID), MSISDN: r.NumeroLinea}
	if r.SimID != nil && *r.SimID != "" {
		id, err := uuid.Parse(*r.SimID)
		if err != nil {
			return c, domainerr.Validation("sim_id inválido")
		}
		c.ID = &id
	}
	if c.Vacio() {
		return c, domainerr.Validation("se requiere sim_id, iccid o numero_linea")
	}
	return c, nil
}

type EliminarSimRequest struct {
	SimRefRequest
	Force bool `json:"force"`
}

// SimFilter is bound from the query string of GET /v1/sims.
type SimFilter struct {
	Estado string `form:"estado"`
	LoteID string `form:"lote_id"`
	Q      string `form:"q"`
	Limit  int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SimResponse struct {
	ID                 string  `json:"id"`
	LoteID             string  `json:"lote_id"`
	NumeroLinea        string  `json:"numero_linea"`
	ICCID              string  `json:"iccid"`
	Estado             string  `json:"estado"`
	PlanAsignado       *string `json:"plan_asignado"`
	WinredProductID    *string `json:"winred_product_id"`
	FechaUltimaRecarga *string `json:"fecha_ultima_recarga"`
	Vendida            bool    `json:"vendida"`
	VentaID            *string `json:"venta_id"`
	FechaVenta         *string `json:"fecha_venta"`
	FechaRegistro      string  `json:"fecha_registro"`
}

type LoteResponse struct {
	ID            string  `json:"id"`
	Operador      string  `json:"operador"`
	PlanAsignado  *string `json:"plan_asignado"`
	Estado        string  `json:"estado"`
	FechaRegistro string  `json:"fecha_registro"`
	Total         int     `json:"total_sims"`
	Disponibles   int     `json:"disponibles"`
	Recargadas    int     `json:"recargadas"`
	Vendidas      int     `json:"vendidas"`
	Defectuosas   int     `json:"defectuosas"`
}

type CrearLoteResponse struct {
	Lote LoteResponse  `json:"lote"`
	Sims []SimResponse `json:"sims"`
}

// MovimientoSimResponse is one state transition of a unit.
type MovimientoSimResponse struct {
	ID             string  `json:"id"`
	Tipo           string  `json:"tipo"`
	EstadoAnterior string  `json:"estado_anterior,omitempty"`
	EstadoNuevo    string  `json:"estado_nuevo"`
	ReferenciaID   *string `json:"referencia_id,omitempty"`
	Detalle        string  `json:"detalle"`
	Fecha          string  `json:"fecha"`
}

type HistorialSimResponse struct {
	Sim         SimResponse             `json:"sim"`
	Movimientos []MovimientoSimResponse `json:"movimientos"`
}

// PlanDisponibleResponse is the sellable stock of one plan.
type PlanDisponibleResponse struct {
	Plan      string `json:"plan"`
	Cantidad  int    `json:"cantidad"`
	StockBajo bool   `json:"stock_bajo"`
}
