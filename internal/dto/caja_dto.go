package dto

import (
	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ConteoInventarioRequest is the operator's count of one plan.
type ConteoInventarioRequest struct {
	Plan          string  `json:"plan"          validate:"required,max=20"`
	Cantidad      int     `json:"cantidad"      validate:"min=0"`
	Observaciones *string `json:"observaciones" validate:"omitempty,max=500"`
}

type AbrirTurnoRequest struct {
	Inventarios []ConteoInventarioRequest `json:"inventarios" validate:"dive"`
}

// TotalesReportadosRequest are the amounts the operator counted at close.
type TotalesReportadosRequest struct {
	Efectivo    decimal.Decimal `json:"cash"       validate:"min=0"`
	Tarjeta     decimal.Decimal `json:"card"       validate:"min=0"`
	Electronico decimal.Decimal `json:"electronic" validate:"min=0"`
	Dolares     decimal.Decimal `json:"dollars"    validate:"min=0"`
}

func (t TotalesReportadosRequest) Totales() model.TotalesPorMetodo {
	return model.TotalesPorMetodo{Efectivo: t.Efectivo, Tarjeta: t.Tarjeta, Electronico: t.Electronico, Dolares: t.Dolares}
}

type CerrarTurnoRequest struct {
	Reportado     TotalesReportadosRequest  `json:"reportado"`
	Inventarios   []ConteoInventarioRequest `json:"inventarios"   validate:"dive"`
	Observaciones *string                   `json:"observaciones" validate:"omitempty,max=1000"`
}

// MovimientoManualRequest registers a manual cash entry or withdrawal.
type MovimientoManualRequest struct {
	Tipo        string          `json:"tipo"           validate:"required,oneof=ingreso egreso"`
	MetodoPago  string          `json:"payment_method"`
	Monto       decimal.Decimal `json:"monto"          validate:"required,gt=0"`
	Descripcion string          `json:"descripcion"    validate:"required,min=3"`
}

// TurnoFilter is bound from the query string of GET /v1/turnos/historial.
type TurnoFilter struct {
	UsuarioID string `form:"usuario_id"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type InventarioTurnoResponse struct {
	Plan                     string  `json:"plan"`
	CantidadInicialReportada int     `json:"cantidad_inicial_reportada"`
	CantidadInicialSistema   int     `json:"cantidad_inicial_sistema"`
	DiferenciaInicial        int     `json:"diferencia_inicial"`
	TieneApertura            bool    `json:"tiene_apertura"`
	CantidadFinalReportada   *int    `json:"cantidad_final_reportada"`
	UnidadesVendidas         *int    `json:"unidades_vendidas"`
	CantidadFinalSistema     *int    `json:"cantidad_final_sistema"`
	DiferenciaFinal          *int    `json:"diferencia_final"`
	ObservacionesApertura    *string `json:"observaciones_apertura"`
	ObservacionesCierre      *string `json:"observaciones_cierre"`
	FechaCierre              *string `json:"fecha_cierre"`
}

type CierreResponse struct {
	TurnoID       string                 `json:"turno_id"`
	FechaCierre   string                 `json:"fecha_cierre"`
	Sistema       model.TotalesPorMetodo `json:"sistema"`
	Reportado     model.TotalesPorMetodo `json:"reportado"`
	Diferencia    model.TotalesPorMetodo `json:"diferencia"`
	Observaciones string                 `json:"observaciones"`
}

type TurnoResponse struct {
	ID            string                    `json:"id"`
	UsuarioID     string                    `json:"usuario_id"`
	Estado        string                    `json:"estado"`
	FechaApertura string                    `json:"fecha_apertura"`
	FechaCierre   *string                   `json:"fecha_cierre"`
	Inventarios   []InventarioTurnoResponse `json:"inventarios"`
	Cierre        *CierreResponse           `json:"cierre,omitempty"`
}

// EstadoTurnoResponse answers "does the caller have an open shift".
type EstadoTurnoResponse struct {
	Abierto bool                    `json:"abierto"`
	Turno   *TurnoResponse          `json:"turno"`
	Totales *model.TotalesPorMetodo `json:"totales,omitempty"`
}

type TurnoListResponse struct {
	Data  []TurnoResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// DescuadreResponse is a closed inventory count whose difference is not zero.
type DescuadreResponse struct {
	TurnoID         string `json:"turno_id"`
	UsuarioID       string `json:"usuario_id"`
	Plan            string `json:"plan"`
	DiferenciaFinal int    `json:"diferencia_final"`
	FechaCierre     string `json:"fecha_cierre"`
}

type MovimientoResponse struct {
	ID          string          `json:"id"`
	TurnoID     string          `json:"turno_id"`
	Tipo        string          `json:"tipo"`
	Monto       decimal.Decimal `json:"monto"`
	MetodoPago  string          `json:"payment_method"`
	Descripcion string          `json:"descripcion"`
	VentaID     *string         `json:"venta_id"`
	Fecha       string          `json:"fecha"`
}

type PuntoSerie struct {
	Fecha string          `json:"fecha"`
	Total decimal.Decimal `json:"total"`
}

type DashboardResponse struct {
	VentasHoy       decimal.Decimal          `json:"ventas_hoy"`
	VentasSemana    decimal.Decimal          `json:"ventas_semana"`
	VentasMes       decimal.Decimal          `json:"ventas_mes"`
	PorMetodoHoy    model.TotalesPorMetodo   `json:"por_metodo_hoy"`
	Serie           []PuntoSerie             `json:"serie_14_dias"`
	SimsVendibles   int                      `json:"sims_vendibles"`
	PlanesBajoStock []PlanDisponibleResponse `json:"planes_bajo_stock"`
	TurnosAbiertos  int64                    `json:"turnos_abiertos"`
}
