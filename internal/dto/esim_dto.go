package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearESimRequest struct {
	ICCID          string  `json:"iccid"           validate:"required,min=10,max=20"`
	NumeroTelefono string  `json:"numero_telefono" validate:"required,min=7,max=15"`
	QRCodeData     *string `json:"qr_code_data"`
	QRCodeURL      *string `json:"qr_code_url"     validate:"omitempty,url"`
	Operador       *string `json:"operador"        validate:"omitempty,max=50"`
	Observaciones  *string `json:"observaciones"`
}

type CrearESimLoteRequest struct {
	ESims []CrearESimRequest `json:"esims" validate:"required,min=1,max=500,dive"`
}

type VenderESimRequest struct {
	PlanDias   int     `json:"plan_dias"   validate:"required,min=1,max=365"`
	PlanNombre string  `json:"plan_nombre" validate:"required,max=50"`
	VentaID    *string `json:"venta_id"    validate:"omitempty,uuid"`
}

type RegenerarQRRequest struct {
	QRCodeData *string `json:"qr_code_data"`
	QRCodeURL  *string `json:"qr_code_url" validate:"omitempty,url"`
}

type ESimFilter struct {
	Estado string `form:"estado"`
	Q      string `form:"q"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ESimResponse struct {
	ID                      string  `json:"id"`
	ICCID                   string  `json:"iccid"`
	NumeroTelefono          string  `json:"numero_telefono"`
	Estado                  string  `json:"estado"`
	QRCodeData              *string `json:"qr_code_data"`
	QRCodeURL               *string `json:"qr_code_url"`
	FechaVenta              *string `json:"fecha_venta"`
	FechaVencimiento        *string `json:"fecha_vencimiento"`
	PlanDias                *int    `json:"plan_dias"`
	PlanNombre              *string `json:"plan_nombre"`
	VentaID                 *string `json:"venta_id"`
	HistorialRegeneraciones int     `json:"historial_regeneraciones"`
	UltimaRegeneracion      *string `json:"ultima_regeneracion"`
	Operador                *string `json:"operador"`
	Observaciones           *string `json:"observaciones"`
}

type ESimListResponse struct {
	Data  []ESimResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type ESimStatsResponse struct {
	Disponibles int64 `json:"disponibles"`
	Vendidas    int64 `json:"vendidas"`
	Vencidas    int64 `json:"vencidas"`
	Inactivas   int64 `json:"inactivas"`
	PorVencer   int64 `json:"por_vencer"`
}

// CrearESimLoteResponse reports which rows were created and why others were skipped.
type CrearESimLoteResponse struct {
	Creadas  int               `json:"creadas"`
	Omitidas map[string]string `json:"omitidas"`
}
