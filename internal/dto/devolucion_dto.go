package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ClienteInfo struct {
	Nombre         *string `json:"nombre"         validate:"omitempty,max=120"`
	Identificacion *string `json:"identificacion" validate:"omitempty,max=32"`
	Telefono       *string `json:"telefono"       validate:"omitempty,max=20"`
}

type IntercambioRequest struct {
	VentaID            string       `json:"venta_id"             validate:"required,uuid"`
	SimDefectuosaICCID string       `json:"sim_defectuosa_iccid" validate:"required,max=32"`
	SimReemplazoICCID  string       `json:"sim_reemplazo_iccid"  validate:"required,max=32"`
	Motivo             string       `json:"motivo"               validate:"required,min=3"`
	Cliente            *ClienteInfo `json:"cliente"`
}

type DevolucionDineroRequest struct {
	VentaID            string          `json:"venta_id"             validate:"required,uuid"`
	SimDefectuosaICCID string          `json:"sim_defectuosa_iccid" validate:"required,max=32"`
	Motivo             string          `json:"motivo"               validate:"required,min=3"`
	Monto              decimal.Decimal `json:"monto"                validate:"gt=0"`
	MetodoDevolucion   string          `json:"metodo_devolucion"`
	Cliente            *ClienteInfo    `json:"cliente"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DevolucionResponse struct {
	ID                    string           `json:"id"`
	Tipo                  string           `json:"tipo"`
	VentaID               string           `json:"venta_id"`
	SimDefectuosaID       string           `json:"sim_defectuosa_id"`
	SimDefectuosaICCID    string           `json:"sim_defectuosa_iccid"`
	SimDefectuosaNumero   string           `json:"sim_defectuosa_numero"`
	SimReemplazoID        *string          `json:"sim_reemplazo_id"`
	SimReemplazoICCID     *string          `json:"sim_reemplazo_iccid"`
	SimReemplazoNumero    *string          `json:"sim_reemplazo_numero"`
	Motivo                string           `json:"motivo"`
	MontoDevuelto         *decimal.Decimal `json:"monto_devuelto"`
	MetodoDevolucion      *string          `json:"metodo_devolucion"`
	UsuarioID             string           `json:"usuario_id"`
	ClienteNombre         *string          `json:"cliente_nombre"`
	ClienteIdentificacion *string          `json:"cliente_identificacion"`
	ClienteTelefono       *string          `json:"cliente_telefono"`
	FechaDevolucion       string           `json:"fecha_devolucion"`
}

type DevolucionListResponse struct {
	Data  []DevolucionResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
