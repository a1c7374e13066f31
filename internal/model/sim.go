package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxSimsPorLote is the hard capacity of a batch.
const MaxSimsPorLote = 20

// SimLote groups up to 20 SIMs of one operator. The ID is supplied by the
// operator (it is printed on the physical package).
type SimLote struct {
	ID            string    `gorm:"type:varchar(64);primaryKey"`
	Operador      string    `gorm:"type:varchar(50);not null"`
	PlanAsignado  *string   `gorm:"type:varchar(20)"`
	Estado        string    `gorm:"type:varchar(20);not null;default:'available'"`
	FechaRegistro time.Time `gorm:"autoCreateTime"`

	Sims []SimDetalle `gorm:"foreignKey:LoteID;constraint:OnDelete:CASCADE"`
}

func (SimLote) TableName() string { return "sim_lotes" }

// SimDetalle is one physical SIM.
// A unit in state vendido always carries VentaID and FechaVenta.
type SimDetalle struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	LoteID             string    `gorm:"type:varchar(64);not null;index"`
	NumeroLinea        string    `gorm:"type:varchar(20);not null;index"`
	ICCID              string    `gorm:"column:iccid;type:varchar(32);not null;uniqueIndex"`
	Estado             SimEstado `gorm:"type:varchar(20);not null;default:'available';index"`
	PlanAsignado       *string   `gorm:"type:varchar(20);index"`
	WinredProductID    *string   `gorm:"type:varchar(20)"`
	FechaUltimaRecarga *time.Time
	Vendida            bool       `gorm:"not null;default:false"`
	VentaID            *uuid.UUID `gorm:"type:uuid;index"`
	FechaVenta         *time.Time
	FechaRegistro      time.Time `gorm:"autoCreateTime"`

	Lote *SimLote `gorm:"foreignKey:LoteID"`
}

func (SimDetalle) TableName() string { return "sim_detalle" }

func (s *SimDetalle) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// CandidatoSim carries every identifier a caller may have for a SIM. Keys are
// resolved in order ID, ICCID, MSISDN; each supplied key must point to the same unit.
type CandidatoSim struct {
	ID     *uuid.UUID
	ICCID  string
	MSISDN string
}

// Vacio reports whether no identifier was supplied.
func (c CandidatoSim) Vacio() bool {
	return c.ID == nil && strings.TrimSpace(c.ICCID) == "" && SoloDigitos(c.MSISDN) == ""
}

// SoloDigitos strips every non-digit rune from a line number.
func SoloDigitos(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Ultimos10 returns the national part of a Colombian MSISDN (country prefix removed).
func Ultimos10(msisdn string) string {
	if len(msisdn) > 10 {
		return msisdn[len(msisdn)-10:]
	}
	return msisdn
}

// MovimientoSim records every state transition of a SIM.
// Tipo: "alta" | "asignar_plan" | "recarga" | "venta" | "intercambio" | "devolucion" | "baja"
type MovimientoSim struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	SimID          uuid.UUID `gorm:"type:uuid;not null;index"`
	Tipo           string    `gorm:"type:varchar(20);not null"`
	EstadoAnterior SimEstado `gorm:"type:varchar(20)"`
	EstadoNuevo    SimEstado `gorm:"type:varchar(20);not null"`
	// ReferenciaID is the venta, devolución or recarga request that caused the change
	ReferenciaID *uuid.UUID `gorm:"type:uuid"`
	Detalle      string
	CreatedAt    time.Time
}

func (MovimientoSim) TableName() string { return "movimientos_sim" }

func (m *MovimientoSim) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// PlanHomologacion maps a Winred product to the Siigo plan code used on sales.
type PlanHomologacion struct {
	WinredProductID string `gorm:"type:varchar(20);primaryKey"`
	Operador        string `gorm:"type:varchar(20);not null"`
	NombreWinred    string `gorm:"type:varchar(120);not null"`
	SiigoCode       string `gorm:"type:varchar(20);not null;index"`
	Activo          bool   `gorm:"not null;default:true"`
}

func (PlanHomologacion) TableName() string { return "plan_homologacion" }
