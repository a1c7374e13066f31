package dto

import "github.com/shopspring/decimal"

type FacturaResponse struct {
	ID          string          `json:"id"`
	VentaID     string          `json:"venta_id"`
	Numero      *string         `json:"numero"`
	MontoTotal  decimal.Decimal `json:"monto_total"`
	Estado      string          `json:"estado"`
	RetryCount  int             `json:"retry_count"`
	NextRetryAt *string         `json:"next_retry_at"`
	LastError   *string         `json:"last_error"`
	CreatedAt   string          `json:"created_at"`
}
