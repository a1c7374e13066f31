package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
type VentaFilter struct {
	Desde  string `form:"desde"` // YYYY-MM-DD
	Hasta  string `form:"hasta"` // YYYY-MM-DD, inclusive
	Estado string `form:"estado"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ItemVentaRequest is one sold line. SIM lines carry the plan code as
// product_code and at least one SIM identifier.
type ItemVentaRequest struct {
	ProductCode    string          `json:"product_code"    validate:"required,max=50"`
	Descripcion    string          `json:"description"     validate:"omitempty,max=200"`
	Cantidad       int             `json:"quantity"        validate:"required,min=1"`
	PrecioUnitario decimal.Decimal `json:"unit_price"      validate:"min=0"`
	IVA            decimal.Decimal `json:"tax_rate"        validate:"min=0"`
	SimID          *string         `json:"sim_id"          validate:"omitempty,uuid"`
	ICCID          *string         `json:"iccid"           validate:"omitempty,max=32"`
	MSISDN         *string         `json:"msisdn"          validate:"omitempty,max=20"`
}

type RegistrarVentaRequest struct {
	MetodoPago            string             `json:"payment_method"`
	ClienteID             *string            `json:"customer_id"             validate:"omitempty,max=64"`
	ClienteIdentificacion *string            `json:"customer_identification" validate:"omitempty,max=32"`
	SiigoInvoiceID        *string            `json:"siigo_invoice_id"        validate:"omitempty,max=64"`
	Items                 []ItemVentaRequest `json:"items"                   validate:"required,min=1,dive"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductCode    string          `json:"product_code"`
	Descripcion    string          `json:"description"`
	Cantidad       int             `json:"quantity"`
	PrecioUnitario decimal.Decimal `json:"unit_price"`
	IVA            decimal.Decimal `json:"tax_rate"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ICCID          *string         `json:"iccid,omitempty"`
	MSISDN         *string         `json:"msisdn,omitempty"`
}

type VentaResponse struct {
	ID             string              `json:"id"`
	TurnoID        string              `json:"turno_id"`
	UsuarioID      string              `json:"usuario_id"`
	MetodoPago     string              `json:"payment_method"`
	Total          decimal.Decimal     `json:"total"`
	Estado         string              `json:"estado"`
	SiigoInvoiceID *string             `json:"siigo_invoice_id"`
	Items          []ItemVentaResponse `json:"items"`
	CreatedAt      string              `json:"created_at"`
	// EnviadaFacturacion is true when the invoicing job was queued
	EnviadaFacturacion bool `json:"invoice_forwarded"`
	// SimsNoVinculadas lists the identifiers whose SIM could not be marked sold
	SimsNoVinculadas []string `json:"sims_no_vinculadas,omitempty"`
}
