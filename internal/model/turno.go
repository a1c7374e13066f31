package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Turno is one operator's cash-drawer session.
// At most one turno per usuario can be abierto; the partial unique index
// ux_turnos_usuario_abierto enforces it at the database level.
type Turno struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey"`
	UsuarioID     uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:ux_turnos_usuario_abierto,where:estado = 'abierto'"`
	Estado        EstadoTurno `gorm:"type:varchar(20);not null;default:'abierto';index"`
	FechaApertura time.Time   `gorm:"not null"`
	FechaCierre   *time.Time

	Inventarios []InventarioSimTurno `gorm:"foreignKey:TurnoID"`
	Cierre      *CierreCaja          `gorm:"foreignKey:TurnoID"`
}

func (t *Turno) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// MovimientoCaja is an insert-only event of the cash journal.
// Tipo: "venta" | "devolucion" | "ingreso" | "egreso"
// Reconciliation sums skip venta movements whose sale was later annulled.
type MovimientoCaja struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TurnoID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Tipo        string          `gorm:"type:varchar(20);not null"`
	Monto       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MetodoPago  MetodoPago      `gorm:"type:varchar(20);not null"`
	Descripcion string
	VentaID     *uuid.UUID `gorm:"type:uuid;index"`
	Fecha       time.Time  `gorm:"not null;index"`
}

func (MovimientoCaja) TableName() string { return "movimientos_caja" }

func (m *MovimientoCaja) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TotalesPorMetodo holds one amount per canonical payment method.
type TotalesPorMetodo struct {
	Efectivo    decimal.Decimal `json:"cash"`
	Tarjeta     decimal.Decimal `json:"card"`
	Electronico decimal.Decimal `json:"electronic"`
	Dolares     decimal.Decimal `json:"dollars"`
}

// Sumar adds amount to the bucket of method m.
func (t *TotalesPorMetodo) Sumar(m MetodoPago, amount decimal.Decimal) {
	switch m {
	case MetodoEfectivo:
		t.Efectivo = t.Efectivo.Add(amount)
	case MetodoTarjeta:
		t.Tarjeta = t.Tarjeta.Add(amount)
	case MetodoElectronico:
		t.Electronico = t.Electronico.Add(amount)
	case MetodoDolares:
		t.Dolares = t.Dolares.Add(amount)
	}
}

// EnCentavos reports whether every amount fits a decimal(12,2) column as is.
func (t TotalesPorMetodo) EnCentavos() bool {
	return EnCentavos(t.Efectivo) && EnCentavos(t.Tarjeta) && EnCentavos(t.Electronico) && EnCentavos(t.Dolares)
}

// EnCentavos reports whether d has at most two decimals. Money columns are
// decimal(12,2); an amount with more precision would be rounded by the
// database after the differences were already computed.
func EnCentavos(d decimal.Decimal) bool { return d.Equal(d.Round(2)) }

// Total is the sum across methods.
func (t TotalesPorMetodo) Total() decimal.Decimal {
	return t.Efectivo.Add(t.Tarjeta).Add(t.Electronico).Add(t.Dolares)
}

// CierreCaja is the reconciliation snapshot of a closed turno. Differences
// are always reportado − sistema; build it with NuevoCierreCaja.
type CierreCaja struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TurnoID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	FechaCierre time.Time `gorm:"not null"`

	TotalEfectivo    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalDatafono    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalElectronico decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalDolares     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	EfectivoReportado    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DatafonoReportado    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ElectronicoReportado decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DolaresReportado     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	DiferenciaEfectivo    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DiferenciaDatafono    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DiferenciaElectronico decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DiferenciaDolares     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	Observaciones string `gorm:"type:text"`
}

func (CierreCaja) TableName() string { return "cierres_caja" }

func (c *CierreCaja) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// NuevoCierreCaja derives every difference from the system and reported totals.
func NuevoCierreCaja(turnoID uuid.UUID, sistema, reportado TotalesPorMetodo, obs string, at time.Time) *CierreCaja {
	return &CierreCaja{
		TurnoID:               turnoID,
		FechaCierre:           at,
		TotalEfectivo:         sistema.Efectivo,
		TotalDatafono:         sistema.Tarjeta,
		TotalElectronico:      sistema.Electronico,
		TotalDolares:          sistema.Dolares,
		EfectivoReportado:     reportado.Efectivo,
		DatafonoReportado:     reportado.Tarjeta,
		ElectronicoReportado:  reportado.Electronico,
		DolaresReportado:      reportado.Dolares,
		DiferenciaEfectivo:    reportado.Efectivo.Sub(sistema.Efectivo),
		DiferenciaDatafono:    reportado.Tarjeta.Sub(sistema.Tarjeta),
		DiferenciaElectronico: reportado.Electronico.Sub(sistema.Electronico),
		DiferenciaDolares:     reportado.Dolares.Sub(sistema.Dolares),
		Observaciones:         obs,
	}
}

// Sistema returns the system-computed totals.
func (c CierreCaja) Sistema() TotalesPorMetodo {
	return TotalesPorMetodo{Efectivo: c.TotalEfectivo, Tarjeta: c.TotalDatafono, Electronico: c.TotalElectronico, Dolares: c.TotalDolares}
}

// Reportado returns the totals declared by the operator.
func (c CierreCaja) Reportado() TotalesPorMetodo {
	return TotalesPorMetodo{Efectivo: c.EfectivoReportado, Tarjeta: c.DatafonoReportado, Electronico: c.ElectronicoReportado, Dolares: c.DolaresReportado}
}

// InventarioSimTurno is the per-plan SIM count of a turno, captured at open and
// completed at close. CantidadFinalSistema and DiferenciaFinal stay nil when the
// plan had no opening count: the theoretical stock cannot be computed.
type InventarioSimTurno struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	TurnoID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_inventario_turno_plan"`
	Plan    string    `gorm:"type:varchar(20);not null;uniqueIndex:ux_inventario_turno_plan"`

	CantidadInicialReportada int `gorm:"not null;default:0"`
	CantidadInicialSistema   int `gorm:"not null;default:0"`
	DiferenciaInicial        int `gorm:"not null;default:0"`
	// TieneApertura is false for rows created only at close
	TieneApertura bool `gorm:"not null"`

	CantidadFinalReportada *int
	UnidadesVendidas       *int
	CantidadFinalSistema   *int
	DiferenciaFinal        *int

	ObservacionesApertura *string `gorm:"type:text"`
	ObservacionesCierre   *string `gorm:"type:text"`
	FechaRegistro         time.Time
	FechaCierre           *time.Time
}

func (InventarioSimTurno) TableName() string { return "inventario_sim_turno" }

func (i *InventarioSimTurno) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// CerrarConteo completes the row with the closing count. theoretical stock is
// opening reported − units sold; difference is reported − theoretical.
func (i *InventarioSimTurno) CerrarConteo(reportado, vendidas int, obs *string, at time.Time) {
	teorico := i.CantidadInicialReportada - vendidas
	dif := reportado - teorico
	i.CantidadFinalReportada = &reportado
	i.UnidadesVendidas = &vendidas
	i.CantidadFinalSistema = &teorico
	i.DiferenciaFinal = &dif
	i.ObservacionesCierre = obs
	i.FechaCierre = &at
}

// ItemVendido is a sold line of a turno used to derive units sold per plan.
type ItemVendido struct {
	ProductCode string
	Cantidad    int
}
