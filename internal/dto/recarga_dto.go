package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RecargaRequest struct {
	SimRefRequest
	ProductID string `json:"product_id" validate:"required,max=20"`
	Amount    string `json:"amount"     validate:"omitempty,numeric"`
	SellFrom  string `json:"sell_from"  validate:"omitempty,max=2"`
}

type RecargaLoteRequest struct {
	LoteID    string `json:"lote_id"    validate:"required,max=64"`
	ProductID string `json:"product_id" validate:"required,max=20"`
	Amount    string `json:"amount"     validate:"omitempty,numeric"`
	SellFrom  string `json:"sell_from"  validate:"omitempty,max=2"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type RecargaResponse struct {
	SimID       string  `json:"sim_id"`
	ICCID       string  `json:"iccid"`
	NumeroLinea string  `json:"numero_linea"`
	Estado      string  `json:"estado"`
	Plan        *string `json:"plan"`
	RequestID   string  `json:"request_id"`
	Mensaje     string  `json:"mensaje"`
}

// RecargaResultado is the per-unit outcome of a batch top-up.
type RecargaResultado struct {
	SimID       string `json:"sim_id"`
	ICCID       string `json:"iccid"`
	NumeroLinea string `json:"numero_linea"`
	Intentos    int    `json:"intentos"`
	RequestID   string `json:"request_id,omitempty"`
	Mensaje     string `json:"mensaje,omitempty"`
	Error       string `json:"error,omitempty"`
}

type RecargaLoteResponse struct {
	LoteID       string             `json:"lote_id"`
	ProductID    string             `json:"product_id"`
	Total        int                `json:"total"`
	Successful   []RecargaResultado `json:"successful"`
	Failed       []RecargaResultado `json:"failed"`
	PlanAsignado *string            `json:"plan_asignado"`
}

// Tipos de evento de progreso.
const (
	EventoInicio     = "start"
	EventoProcesando = "processing"
	EventoExito      = "success"
	EventoError      = "error"
	EventoCompleto   = "complete"
)

// EventoProgreso is pushed to the client while a batch top-up runs.
type EventoProgreso struct {
	Tipo        string               `json:"type"`
	Indice      int                  `json:"index"`
	Total       int                  `json:"total"`
	ICCID       string               `json:"iccid,omitempty"`
	NumeroLinea string               `json:"numero_linea,omitempty"`
	Intento     int                  `json:"attempt,omitempty"`
	Mensaje     string               `json:"message,omitempty"`
	Resultado   *RecargaLoteResponse `json:"result,omitempty"`
}

type PaqueteResponse struct {
	ProductID string `json:"product_id"`
	Nombre    string `json:"name"`
	Precio    string `json:"price"`
	Vigencia  string `json:"validity"`
}

type SaldoResponse struct {
	Suscriber string `json:"suscriber"`
	OK        bool   `json:"ok"`
	Mensaje   string `json:"mensaje"`
	Data      any    `json:"data,omitempty"`
}
